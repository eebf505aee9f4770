package catalog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Address is the postal address of a user.
type Address struct {
	Address    string
	City       string
	PostalCode string
}

// User is the account record of the external auth API.
type User struct {
	ID        int
	Username  string
	Email     string
	FirstName string
	LastName  string
	Gender    string
	Image     string
	Address   *Address
	// Token is only set on login responses.
	Token string
}

// Credentials are the login form fields.
type Credentials struct {
	Username string
	Password string
}

// UserUpdate is a partial user; nil fields are left unchanged.
type UserUpdate struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Gender    *string
	Image     *string
	Address   *Address
}

// Login authenticates against the catalog's auth endpoint.
func (c *Client) Login(ctx context.Context, cred Credentials) (*User, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.Login", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("username")
	e.Str(cred.Username)
	e.FieldStart("password")
	e.Str(cred.Password)
	e.ObjEnd()

	u := new(User)
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, e.Bytes(), u.decode); err != nil {
		recordError(span, err)
		return nil, errors.Wrap(err, "login")
	}
	return u, nil
}

// UpdateUser applies upd to the user with id and returns the updated record.
func (c *Client) UpdateUser(ctx context.Context, id int, upd UserUpdate) (*User, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.UpdateUser",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("user.id", id)),
	)
	defer span.End()

	u := new(User)
	if err := c.do(ctx, http.MethodPut, "/users/"+strconv.Itoa(id), nil, upd.encode(), u.decode); err != nil {
		recordError(span, err)
		return nil, errors.Wrapf(err, "update user %d", id)
	}
	return u, nil
}

func (upd UserUpdate) encode() []byte {
	var e jx.Encoder
	e.ObjStart()
	for _, f := range []struct {
		name string
		v    *string
	}{
		{"username", upd.Username},
		{"email", upd.Email},
		{"firstName", upd.FirstName},
		{"lastName", upd.LastName},
		{"gender", upd.Gender},
		{"image", upd.Image},
	} {
		if f.v != nil {
			e.FieldStart(f.name)
			e.Str(*f.v)
		}
	}
	if upd.Address != nil {
		e.FieldStart("address")
		e.ObjStart()
		e.FieldStart("address")
		e.Str(upd.Address.Address)
		e.FieldStart("city")
		e.Str(upd.Address.City)
		e.FieldStart("postalCode")
		e.Str(upd.Address.PostalCode)
		e.ObjEnd()
	}
	e.ObjEnd()
	return e.Bytes()
}

func (u *User) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		var err error
		switch key {
		case "id":
			u.ID, err = d.Int()
		case "username":
			u.Username, err = d.Str()
		case "email":
			u.Email, err = d.Str()
		case "firstName":
			u.FirstName, err = d.Str()
		case "lastName":
			u.LastName, err = d.Str()
		case "gender":
			u.Gender, err = d.Str()
		case "image":
			u.Image, err = d.Str()
		case "token", "accessToken":
			u.Token, err = d.Str()
		case "address":
			a := new(Address)
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "address":
					a.Address, err = d.Str()
				case "city":
					a.City, err = d.Str()
				case "postalCode":
					a.PostalCode, err = d.Str()
				default:
					err = d.Skip()
				}
				return err
			})
			u.Address = a
		default:
			err = d.Skip()
		}
		return err
	})
}
