package domain

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// NewID returns a new 24-character hexadecimal object identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IsObjectID reports whether s is a well-formed 24-character hex identifier.
func IsObjectID(s string) bool {
	return objectIDPattern.MatchString(s)
}
