package domain

import "errors"

var (
	ErrPublicationNotFound = errors.New("publication_not_found")
	ErrSlugTaken           = errors.New("slug_already_taken")
)
