// Package hcl_adapter implements config.Loader for HCL files.
//
// A configuration file may contain any of these blocks; later files
// override earlier ones attribute by attribute:
//
//	store { name = "demo"  workers = 4 }
//	logging { level = "debug"  format = "json" }
//	persistence { backend = "sqlite"  path = "state.db"  restore_on_start = true }
//	devtools { url = "http://localhost:3000"  namespace = "/" }
//	healthcheck { port = 8080 }
//	module "envvars" { prefix = "APP_" }
package hcl_adapter
