// internal/objecthash/objecthash.go
//
// Package objecthash computes the content addresses that identify listings,
// images and orders across nodes. Each kind hashes a fixed projection of the
// entity, never the full entity, so that copies built independently on
// different nodes produce the same digest.
package objecthash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/javajoker/mpnode/internal/apperr"
)

type Kind string

const (
	KindListingItem         Kind = "listingitem"
	KindListingItemTemplate Kind = "listingitemtemplate"
	KindItemImage           Kind = "itemimage"
	KindOrder               Kind = "order"
)

// Listing is the projection shared by listing items and their templates.
type Listing struct {
	Title              string  `json:"title" validate:"required"`
	ShortDescription   string  `json:"shortDescription"`
	LongDescription    string  `json:"longDescription"`
	BasePrice          float64 `json:"basePrice"`
	PaymentAddress     string  `json:"paymentAddress" validate:"required"`
	MessagingPublicKey string  `json:"messagingPublicKey"`
}

type timestampedListing struct {
	Listing
	Timestamp int64 `json:"timestamp"`
}

type Image struct {
	ImageData string `json:"imageData" validate:"required"`
}

// Order holds only what both parties know, so buyer and seller derive the
// same hash.
type Order struct {
	Buyer      string   `json:"buyer" validate:"required"`
	Seller     string   `json:"seller" validate:"required"`
	ItemHashes []string `json:"itemHashes" validate:"required,min=1,dive,required"`
}

// MissingFieldError is returned when a projection lacks a field its kind requires.
type MissingFieldError struct {
	Kind   Kind
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("cannot hash %s: missing %s", e.Kind, strings.Join(e.Fields, ", "))
}

var validate = validator.New()

// Hash digests projection as kind. The projection type must match the kind.
func Hash(kind Kind, projection interface{}) (string, error) {
	switch p := projection.(type) {
	case Listing:
		if kind != KindListingItem {
			return "", mismatch(kind, projection)
		}
		return hashProjection(kind, p)
	case Image:
		if kind != KindItemImage {
			return "", mismatch(kind, projection)
		}
		return hashProjection(kind, p)
	case Order:
		if kind != KindOrder {
			return "", mismatch(kind, projection)
		}
		return hashProjection(kind, p)
	default:
		return "", mismatch(kind, projection)
	}
}

func HashListing(p Listing) (string, error) {
	return Hash(KindListingItem, p)
}

// HashTemplate folds a timestamp into the listing projection so that
// otherwise identical drafts get distinct hashes. Never use it for anything
// that must match on another node.
func HashTemplate(p Listing, at time.Time) (string, error) {
	return hashProjection(KindListingItemTemplate, timestampedListing{Listing: p, Timestamp: at.UnixMilli()})
}

func HashImage(data string) (string, error) {
	return Hash(KindItemImage, Image{ImageData: data})
}

func HashOrder(p Order) (string, error) {
	return Hash(KindOrder, p)
}

func hashProjection(kind Kind, projection interface{}) (string, error) {
	if err := validate.Struct(projection); err != nil {
		missing := &MissingFieldError{Kind: kind}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				missing.Fields = append(missing.Fields, fe.Field())
			}
		}
		return "", apperr.Wrap(apperr.KindMalformed, missing, "invalid %s projection", kind)
	}
	return digest(projection)
}

// digest serializes v, sorts the UTF-16 code units of the serialization,
// joins them with commas and returns the hex SHA-256 of the UTF-8 result.
// Peers compute the same sequence, so the steps must not change.
func digest(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to serialize projection: %w", err)
	}
	serialized := unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))

	units := utf16.Encode([]rune(string(serialized)))
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })

	// Sorting splits surrogate pairs; each half encodes as U+FFFD.
	var joined strings.Builder
	for i, u := range units {
		if i > 0 {
			joined.WriteByte(',')
		}
		if utf16.IsSurrogate(rune(u)) {
			joined.WriteRune(utf8.RuneError)
			continue
		}
		joined.WriteRune(rune(u))
	}

	sum := sha256.Sum256([]byte(joined.String()))
	return hex.EncodeToString(sum[:]), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes encoding/json
// emits back into the raw characters, leaving escaped backslashes alone.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 == len(b) {
			out = append(out, b[i])
			continue
		}
		if rest := b[i:]; len(rest) >= 6 && bytes.HasPrefix(rest, []byte(`\u202`)) && (rest[5] == '8' || rest[5] == '9') {
			out = utf8.AppendRune(out, 0x2020+rune(rest[5]-'0'))
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

func mismatch(kind Kind, projection interface{}) error {
	return apperr.Malformed("projection %T cannot be hashed as %s", projection, kind)
}
