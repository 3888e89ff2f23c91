package login

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/internal/errors"
)

// ParseWidgetQuery decodes the query string the login widget redirects
// with: id, first_name, last_name, username, photo_url, auth_date, hash.
func ParseWidgetQuery(q url.Values) (authmodel.TelegramLoginData, error) {
	var data authmodel.TelegramLoginData
	var err error
	if raw := q.Get("id"); raw != "" {
		if data.ID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return data, fmt.Errorf("%w: id %q is not a number", errors.ErrInvalidTelegramData, raw)
		}
	}
	if raw := q.Get("auth_date"); raw != "" {
		if data.AuthDate, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return data, fmt.Errorf("%w: auth_date %q is not a number", errors.ErrInvalidTelegramData, raw)
		}
	}
	data.FirstName = q.Get("first_name")
	data.Hash = q.Get("hash")
	data.LastName = optional(q, "last_name")
	data.Username = optional(q, "username")
	data.PhotoURL = optional(q, "photo_url")
	return data, nil
}

func optional(q url.Values, key string) *string {
	if !q.Has(key) {
		return nil
	}
	v := q.Get(key)
	return &v
}
