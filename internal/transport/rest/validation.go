package rest

import (
	"strconv"
	"time"

	"loanbook/internal/domain"
)

// The front office sends numbers and ids as either JSON numbers or strings;
// these helpers accept both.

func toStringPtr(v interface{}) (*string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return &t, nil
	case float64:
		s := strconv.FormatInt(int64(t), 10)
		return &s, nil
	default:
		return nil, domain.Invalid("", "invalid type for string field")
	}
}

func toFloat64Ptr(v interface{}) (*float64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &t, nil
	case string:
		if t == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, err
		}
		return &f, nil
	default:
		return nil, domain.Invalid("", "invalid type for number field")
	}
}

func toIntPtr(v interface{}) (*int, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		i := int(t)
		return &i, nil
	case string:
		if t == "" {
			return nil, nil
		}
		i, err := strconv.Atoi(t)
		if err != nil {
			return nil, err
		}
		return &i, nil
	default:
		return nil, domain.Invalid("", "invalid type for int field")
	}
}

func toDatePtr(v interface{}) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		parsed, err := time.Parse("2006-01-02", t)
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	default:
		return nil, domain.Invalid("", "invalid type for date field")
	}
}
