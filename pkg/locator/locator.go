// Package locator models references to media essence in cloud object storage.
//
// A Locator is a closed union: one variant per supported storage backend plus a
// plain HTTP variant. Callers that only need to hand a file to a remote service
// never inspect the variant; they ask a Resolver for a fetchable URL.
package locator

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies a locator variant.
//
// NOTE: These values travel inside job input/output documents and are part of
// the stable wire contract.
type Kind string

const (
	KindS3           Kind = "S3Locator"
	KindBlobStorage  Kind = "BlobStorageLocator"
	KindCloudStorage Kind = "CloudStorageLocator"
	KindHTTP         Kind = "HttpLocator"
)

// Errors returned by locator operations.
var (
	// ErrUnknownKind is returned when a document carries an unrecognized @type.
	ErrUnknownKind = errors.New("unknown locator kind")

	// ErrIncomplete is returned when a locator is missing required fields.
	ErrIncomplete = errors.New("incomplete locator")
)

// Locator is a reference to a single object in some storage backend.
type Locator interface {
	// Kind returns the variant discriminator.
	Kind() Kind

	// Validate checks that the locator has the fields its variant requires.
	Validate() error
}

// S3Locator points at an object in AWS S3 (or an S3-compatible store).
type S3Locator struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Region string `json:"region,omitempty"`
}

func (l S3Locator) Kind() Kind { return KindS3 }

func (l S3Locator) Validate() error {
	if l.Bucket == "" || l.Key == "" {
		return fmt.Errorf("%w: s3 locator requires bucket and key", ErrIncomplete)
	}
	return nil
}

// BlobStorageLocator points at a blob in Azure Blob Storage.
type BlobStorageLocator struct {
	Account   string `json:"account"`
	Container string `json:"container"`
	Path      string `json:"path"`
}

func (l BlobStorageLocator) Kind() Kind { return KindBlobStorage }

func (l BlobStorageLocator) Validate() error {
	if l.Account == "" || l.Container == "" || l.Path == "" {
		return fmt.Errorf("%w: blob locator requires account, container and path", ErrIncomplete)
	}
	return nil
}

// CloudStorageLocator points at an object in Google Cloud Storage.
type CloudStorageLocator struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
}

func (l CloudStorageLocator) Kind() Kind { return KindCloudStorage }

func (l CloudStorageLocator) Validate() error {
	if l.Bucket == "" || l.Path == "" {
		return fmt.Errorf("%w: cloud storage locator requires bucket and path", ErrIncomplete)
	}
	return nil
}

// HTTPLocator points at an object reachable through a plain URL.
type HTTPLocator struct {
	URL string `json:"url"`
}

func (l HTTPLocator) Kind() Kind { return KindHTTP }

func (l HTTPLocator) Validate() error {
	if l.URL == "" {
		return fmt.Errorf("%w: http locator requires url", ErrIncomplete)
	}
	return nil
}

// envelope is the wire form of a locator: the variant payload plus @type.
type envelope struct {
	Type Kind `json:"@type"`
}

// Marshal encodes a locator with its @type discriminator.
func Marshal(l Locator) ([]byte, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil locator", ErrIncomplete)
	}

	body, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}

	// Splice the discriminator in front of the variant fields.
	out := []byte(fmt.Sprintf(`{"@type":%q`, l.Kind()))
	if string(body) != "{}" {
		out = append(out, ',')
		out = append(out, body[1:len(body)-1]...)
	}
	out = append(out, '}')
	return out, nil
}

// Decode parses a locator document by its @type discriminator.
//
// Documents without @type but with a url field decode as HttpLocator; this
// matches how remote services commonly report output files.
func Decode(raw []byte) (Locator, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse locator: %w", err)
	}

	switch env.Type {
	case KindS3:
		var l S3Locator
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("parse s3 locator: %w", err)
		}
		return l, l.Validate()
	case KindBlobStorage:
		var l BlobStorageLocator
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("parse blob locator: %w", err)
		}
		return l, l.Validate()
	case KindCloudStorage:
		var l CloudStorageLocator
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("parse cloud storage locator: %w", err)
		}
		return l, l.Validate()
	case KindHTTP:
		var l HTTPLocator
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("parse http locator: %w", err)
		}
		return l, l.Validate()
	case "":
		var l HTTPLocator
		if err := json.Unmarshal(raw, &l); err == nil && l.URL != "" {
			return l, nil
		}
		return nil, fmt.Errorf("%w: missing @type", ErrUnknownKind)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, env.Type)
	}
}
