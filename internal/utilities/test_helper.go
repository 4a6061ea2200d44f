package utilities

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

// SimulateAPICall runs handlerFunc against a single request without a router.
// A nil body sends no payload; an empty response decodes to a nil map.
func SimulateAPICall(
	handlerFunc func(*gin.Context),
	route string,
	method string,
	body any,
) (*httptest.ResponseRecorder, map[string]any, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, route, reader)
	if err != nil {
		return nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	handlerFunc(c)

	if rec.Body.Len() == 0 {
		return rec, nil, nil
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		return rec, nil, err
	}
	return rec, resp, nil
}
