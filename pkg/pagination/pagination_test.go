package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, Limit: 20}},
		{"?page=3&limit=5", Params{Page: 3, Limit: 5}},
		{"?page=-1&limit=0", Params{Page: 1, Limit: 20}},
		{"?page=x&limit=1000", Params{Page: 1, Limit: MaxLimit}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/items"+tt.query, nil)
			assert.Equal(t, tt.want, Parse(c))
		})
	}
}

func TestListCountsPages(t *testing.T) {
	p := Params{Page: 2, Limit: 20}
	list := p.List([]int{1, 2}, 41)
	assert.Equal(t, 3, list.TotalPages)
	assert.Equal(t, int64(41), list.Total)
	assert.Equal(t, 2, list.Page)

	assert.Zero(t, p.List(nil, 0).TotalPages)
}
