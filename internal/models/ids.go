package models

import "github.com/oklog/ulid/v2"

// NewID 產生可依時間排序的字串 ID
func NewID() string {
	return ulid.Make().String()
}
