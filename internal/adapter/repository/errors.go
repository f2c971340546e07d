package repository

import (
	"errors"

	"gorm.io/gorm"
)

// isDuplicate relies on gorm's TranslateError option being enabled on the connection.
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
