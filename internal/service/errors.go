package service

import (
	"github.com/gekymedia/gekychat-sub007/internal/apperr"
	"github.com/gekymedia/gekychat-sub007/internal/repository"
)

// storeError classifies a repository failure that was not handled locally.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if repository.IsTransient(err) {
		return apperr.Transient(err)
	}
	return apperr.Internal(err)
}
