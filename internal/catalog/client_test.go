package catalog

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

const pageJSON = `{
  "products": [
    {"id": 1, "title": "Essence Mascara", "price": 9.99, "discountPercentage": 7.17,
     "rating": 4.94, "stock": 5, "brand": "Essence", "category": "beauty",
     "thumbnail": "t.png", "images": ["1.png"]}
  ],
  "total": 194, "skip": 20, "limit": 1
}`

type recorded struct {
	method string
	path   string
	query  string
	body   string
	ctype  string
}

func newTestServer(t *testing.T, status int, body string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		*rec = recorded{
			method: r.Method,
			path:   r.URL.EscapedPath(),
			query:  r.URL.RawQuery,
			body:   string(data),
			ctype:  r.Header.Get("Content-Type"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, rec
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("not a url")
	require.Error(t, err)

	_, err = New("/relative")
	require.Error(t, err)

	c, err := New("https://dummyjson.com")
	require.NoError(t, err)
	assert.NotNil(t, c.http)
}

func TestList(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, pageJSON)

	page, err := c.List(context.Background(), 20, 40)
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/products", rec.path)
	assert.Equal(t, "limit=20&skip=40", rec.query)

	require.Len(t, page.Products, 1)
	p := page.Products[0]
	assert.Equal(t, 1, p.ID)
	assert.Equal(t, "Essence Mascara", p.Title)
	assert.True(t, decimal.RequireFromString("9.99").Equal(p.Price))
	assert.True(t, decimal.RequireFromString("7.17").Equal(p.DiscountPercentage))
	assert.Equal(t, 194, page.Total)
	assert.Equal(t, 20, page.Skip)
}

func TestSearch_EscapesQuery(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"products":[],"total":0,"skip":0,"limit":0}`)

	page, err := c.Search(context.Background(), "red & blue")
	require.NoError(t, err)
	assert.Empty(t, page.Products)
	assert.NotNil(t, page.Products)

	assert.Equal(t, "/products/search", rec.path)
	assert.Equal(t, "q=red+%26+blue", rec.query)
}

func TestListByCategory(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, pageJSON)

	_, err := c.ListByCategory(context.Background(), "home-decoration", 100)
	require.NoError(t, err)
	assert.Equal(t, "/products/category/home-decoration", rec.path)
	assert.Equal(t, "limit=100", rec.query)

	_, err = c.ListByCategory(context.Background(), "mens shoes", 0)
	require.NoError(t, err)
	assert.Equal(t, "/products/category/mens%20shoes", rec.path)
	assert.Empty(t, rec.query)
}

func TestGetByID(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"id": 42, "title": "Mouse", "price": 100, "unknown": {"x": [1]}}`)

	p, err := c.GetByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "/products/42", rec.path)
	assert.Equal(t, 42, p.ID)
	assert.Equal(t, "Mouse", p.Title)
}

func TestGetByID_NotFound(t *testing.T) {
	c, _ := newTestServer(t, http.StatusNotFound, `{"message":"Product with id '999' not found"}`)

	_, err := c.GetByID(context.Background(), 999)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestStatusError(t *testing.T) {
	c, _ := newTestServer(t, http.StatusBadGateway, `upstream`)

	_, err := c.List(context.Background(), 20, 0)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, "catalog GET /products: status 502", se.Error())

	_, err = c.GetByID(context.Background(), 1)
	require.True(t, errors.As(err, &se))
	assert.NotErrorIs(t, err, product.ErrNotFound)
}

func TestMalformedBody(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, `{"products": [{"id": "one"}]}`)

	_, err := c.List(context.Background(), 20, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode GET /products")
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	srv.Close()

	_, err = c.Search(context.Background(), "x")
	require.Error(t, err)

	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestLogin(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{
		"id": 1, "username": "emilys", "email": "emily@x.dev", "firstName": "Emily",
		"lastName": "Johnson", "gender": "female", "image": "e.png",
		"accessToken": "tok", "refreshToken": "ref"
	}`)

	u, err := c.Login(context.Background(), Credentials{Username: "emilys", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/auth/login", rec.path)
	assert.Equal(t, "application/json", rec.ctype)
	assert.JSONEq(t, `{"username":"emilys","password":"pw"}`, rec.body)

	assert.Equal(t, 1, u.ID)
	assert.Equal(t, "Emily", u.FirstName)
	assert.Equal(t, "tok", u.Token)
}

func TestLogin_Rejected(t *testing.T) {
	c, _ := newTestServer(t, http.StatusBadRequest, `{"message":"Invalid credentials"}`)

	_, err := c.Login(context.Background(), Credentials{Username: "x"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestUpdateUser(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"id": 5, "firstName": "Ann", "address": {"city": "Oslo"}}`)

	first := "Ann"
	u, err := c.UpdateUser(context.Background(), 5, UserUpdate{
		FirstName: &first,
		Address:   &Address{City: "Oslo"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/users/5", rec.path)
	assert.JSONEq(t, `{"firstName":"Ann","address":{"address":"","city":"Oslo","postalCode":""}}`, rec.body)

	assert.Equal(t, "Ann", u.FirstName)
	require.NotNil(t, u.Address)
	assert.Equal(t, "Oslo", u.Address.City)
}

func TestPing(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"products":[{"id":1}],"total":1}`)

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, "limit=1&select=id", rec.query)
}
