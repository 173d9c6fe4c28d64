// Package service implements the use cases behind the HTTP API: uploading a
// file as a job, reprocessing and deleting jobs, and reviewing issues and
// staging rows. Every method takes the acting user explicitly.
package service

import (
	"errors"
	"fmt"

	"github.com/dharsanguruparan/IngestDrop/internal/auth"
	"github.com/dharsanguruparan/IngestDrop/internal/lifecycle"
	"github.com/dharsanguruparan/IngestDrop/internal/repository"
)

// ErrForbidden means the actor lacks the group an operation requires.
var ErrForbidden = errors.New("forbidden")

func requireGroup(actor auth.Actor, group string) error {
	if !actor.HasGroup(group) {
		return fmt.Errorf("%w: requires group %q", ErrForbidden, group)
	}
	return nil
}

// visible converts a repository miss into the lifecycle not-found error so
// foreign and missing records look the same to callers.
func visible(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return lifecycle.ErrNotFound
	}
	return err
}
