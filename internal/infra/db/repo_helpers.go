package db

import (
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"drydock/internal/domain/deploy"
)

var errDBUnavailable = errors.New("db unavailable")

// mapDuplicate converts the translated unique-key violation into the
// domain already-exists sentinel. Requires TranslateError on the gorm
// config, otherwise the driver error passes through untranslated.
func mapDuplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return deploy.ErrAlreadyExists
	}
	return err
}

func marshalList(list []string) []byte {
	if list == nil {
		list = []string{}
	}
	raw, _ := json.Marshal(list)
	return raw
}

func unmarshalList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
