package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a file may contain.
type fileRoot struct {
	Store       *storeBlock       `hcl:"store,block"`
	Logging     *loggingBlock     `hcl:"logging,block"`
	Persistence *persistenceBlock `hcl:"persistence,block"`
	Devtools    *devtoolsBlock    `hcl:"devtools,block"`
	Healthcheck *healthcheckBlock `hcl:"healthcheck,block"`
	Modules     []*moduleBlock    `hcl:"module,block"`
}

type storeBlock struct {
	Name         *string `hcl:"name,optional"`
	Workers      *int    `hcl:"workers,optional"`
	RestartLimit *int    `hcl:"restart_limit,optional"`
}

type loggingBlock struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

type persistenceBlock struct {
	Backend        *string `hcl:"backend,optional"`
	Path           *string `hcl:"path,optional"`
	RestoreOnStart *bool   `hcl:"restore_on_start,optional"`
	SaveOnShutdown *bool   `hcl:"save_on_shutdown,optional"`
}

type devtoolsBlock struct {
	URL                *string `hcl:"url,optional"`
	Namespace          *string `hcl:"namespace,optional"`
	InsecureSkipVerify *bool   `hcl:"insecure_skip_verify,optional"`
}

type healthcheckBlock struct {
	Port *int `hcl:"port,optional"`
}

// moduleBlock holds free-form settings for one module.
type moduleBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}
