package canonical

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

var (
	ErrUnsupportedType = errors.New("blob values are not supported")
	ErrUnknownType     = errors.New("unknown value type")
)

// Tag is the runtime type tag the host attaches to every value.
type Tag int

const (
	TagUnknown Tag = iota
	TagNull
	TagInteger
	TagFloat
	TagText
	TagBlob
)

func (t Tag) String() string {
	switch t {
	case TagNull:
		return "null"
	case TagInteger:
		return "integer"
	case TagFloat:
		return "float"
	case TagText:
		return "text"
	case TagBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// TagOf maps a value handed over by modernc.org/sqlite to its tag.
func TagOf(v driver.Value) Tag {
	switch v.(type) {
	case nil:
		return TagNull
	case int64:
		return TagInteger
	case float64:
		return TagFloat
	case string:
		return TagText
	case []byte:
		return TagBlob
	default:
		return TagUnknown
	}
}

// Canonicalize converts v, tagged as tag, into a Value. A null yields
// ok == false and no error: the row contributes nothing.
func Canonicalize(tag Tag, v driver.Value) (Value, bool, error) {
	switch tag {
	case TagNull:
		return Value{}, false, nil

	case TagInteger:
		if i, ok := v.(int64); ok {
			return Integer(i), true, nil
		}

	case TagFloat:
		if f, ok := v.(float64); ok {
			return FromFloat(f), true, nil
		}

	case TagText:
		switch s := v.(type) {
		case string:
			return Text([]byte(s)), true, nil
		case []byte:
			return Text(s), true, nil
		}

	case TagBlob:
		return Value{}, false, ErrUnsupportedType
	}

	return Value{}, false, fmt.Errorf("%w: tag %s with %T", ErrUnknownType, tag, v)
}
