package storeerrors

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateModule  = "STORE_DUPLICATE_MODULE"
	TextCodeUnknownModule    = "STORE_UNKNOWN_MODULE"
	TextCodeUnregisteredType = "STORE_UNREGISTERED_TYPE"
	TextCodeTypeCollision    = "STORE_TYPE_COLLISION"
	TextCodeUnknownAction    = "STORE_UNKNOWN_ACTION"
	TextCodeReducerFailure   = "STORE_REDUCER_FAILURE"
	TextCodeLogicFailure     = "STORE_LOGIC_FAILURE"
	TextCodeStorage          = "STORE_STORAGE_ERROR"
	TextCodeShutdown         = "STORE_SHUTDOWN"
	TextCodeInternal         = "STORE_INTERNAL_ERROR"
)

// Envelope maps err onto a go-errors envelope carrying a category, an HTTP
// status and a stable text code. It returns nil for a nil error.
func Envelope(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}

	var (
		duplicate    *DuplicateModuleError
		unknownMod   *UnknownModuleError
		unregistered *UnregisteredTypeError
		collision    *TypeCollisionError
		unknownAct   *UnknownActionError
		ambiguous    *AmbiguousActionError
		reducer      *ReducerFailure
		logic        *LogicHandlerFailure
		storage      *StorageError
	)

	switch {
	case errors.Is(err, ErrStoreShutdown):
		return wrap(err, goerrors.CategoryOperation, http.StatusServiceUnavailable, TextCodeShutdown, nil)
	case errors.As(err, &duplicate):
		return wrap(err, goerrors.CategoryConflict, http.StatusConflict, TextCodeDuplicateModule,
			map[string]any{"module": duplicate.ID})
	case errors.As(err, &collision):
		return wrap(err, goerrors.CategoryConflict, http.StatusConflict, TextCodeTypeCollision,
			map[string]any{"type": collision.Type, "name": collision.Name})
	case errors.As(err, &unknownMod):
		return wrap(err, goerrors.CategoryNotFound, http.StatusNotFound, TextCodeUnknownModule,
			map[string]any{"module": unknownMod.ID})
	case errors.As(err, &unregistered):
		return wrap(err, goerrors.CategoryBadInput, http.StatusBadRequest, TextCodeUnregisteredType,
			map[string]any{"type": unregistered.Type, "base": unregistered.Base})
	case errors.As(err, &unknownAct):
		return wrap(err, goerrors.CategoryBadInput, http.StatusBadRequest, TextCodeUnknownAction,
			map[string]any{"type": unknownAct.Type})
	case errors.As(err, &ambiguous):
		return wrap(err, goerrors.CategoryBadInput, http.StatusBadRequest, TextCodeUnknownAction,
			map[string]any{"type": ambiguous.Type, "modules": ambiguous.Modules})
	case errors.As(err, &reducer):
		return wrap(err, goerrors.CategoryOperation, http.StatusUnprocessableEntity, TextCodeReducerFailure,
			map[string]any{"module": reducer.Module, "action": reducer.Action})
	case errors.As(err, &logic):
		return wrap(err, goerrors.CategoryOperation, http.StatusInternalServerError, TextCodeLogicFailure,
			map[string]any{"module": logic.Module})
	case errors.As(err, &storage):
		return wrap(err, goerrors.CategoryExternal, http.StatusBadGateway, TextCodeStorage,
			map[string]any{"op": storage.Op})
	}
	return wrap(err, goerrors.CategoryInternal, http.StatusInternalServerError, TextCodeInternal, nil)
}

func wrap(source error, category goerrors.Category, code int, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.Wrap(source, category, source.Error()).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
