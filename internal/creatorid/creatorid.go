// Package creatorid holds the rule that decides whether a config instance's
// creatorId needs to be overwritten, both as a MongoDB filter and as an
// in-process predicate with the same semantics.
package creatorid

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// Field is the default document field holding the creator id.
	Field = "creatorId"
	// DefaultValue replaces every non-conforming creator id.
	DefaultValue = "0"
	// NonConformingPattern matches any string containing a non-digit, or the empty string.
	NonConformingPattern = "([^0-9]|^$)"
)

var (
	nonConforming = regexp.MustCompile(NonConformingPattern)
	digitsOnly    = regexp.MustCompile(`^[0-9]+$`)
)

// Filter returns the MongoDB query selecting documents whose field is absent, null,
// empty or contains a non-digit character.
func Filter(field string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{field: bson.M{"$exists": false}},
		bson.M{field: nil},
		bson.M{field: bson.M{"$regex": primitive.Regex{Pattern: NonConformingPattern}}},
	}}
}

// NeedsFix reports whether doc would be selected by Filter(field).
// Like $regex, the pattern only applies to strings; numbers and other types never match.
func NeedsFix(doc bson.M, field string) bool {
	v, ok := doc[field]
	if !ok || v == nil {
		return true
	}
	switch s := v.(type) {
	case string:
		return nonConforming.MatchString(s)
	case primitive.Null, primitive.Undefined:
		return true
	}
	return false
}

// Valid reports whether v is a conforming creator id.
func Valid(v string) bool {
	return digitsOnly.MatchString(v)
}
