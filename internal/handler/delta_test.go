package handler

import (
	"testing"

	"commerce-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDelta(t *testing.T) {
	t.Run("merges scalar fields", func(t *testing.T) {
		c := &model.Customer{FirstName: "Jane", LastName: "Smith", EmailAddress: "jane@example.com"}
		err := applyDelta(c, []byte(`{"last_name":"Jones","suffix":"Jr"}`))
		require.NoError(t, err)
		assert.Equal(t, "Jane", c.FirstName)
		assert.Equal(t, "Jones", c.LastName)
		assert.Equal(t, "Jr", c.Suffix)
	})

	t.Run("empty delta is a no-op", func(t *testing.T) {
		c := &model.Customer{FirstName: "Jane"}
		require.NoError(t, applyDelta(c, []byte(`{}`)))
		assert.Equal(t, "Jane", c.FirstName)
	})

	t.Run("rejects unknown field", func(t *testing.T) {
		err := applyDelta(&model.Customer{}, []byte(`{"nickname":"JJ"}`))
		assert.Error(t, err)
	})

	t.Run("rejects key and stamps", func(t *testing.T) {
		for _, body := range []string{
			`{"id":9}`,
			`{"inserted_datetime":"2020-01-01T00:00:00Z"}`,
			`{"last_updated_datetime":"2020-01-01T00:00:00Z"}`,
		} {
			assert.Error(t, applyDelta(&model.Customer{}, []byte(body)), body)
		}
	})

	t.Run("rejects relation fields", func(t *testing.T) {
		err := applyDelta(&model.Customer{}, []byte(`{"orders":[]}`))
		assert.Error(t, err)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		assert.Error(t, applyDelta(&model.Customer{}, []byte(`not json`)))
		assert.Error(t, applyDelta(&model.Customer{}, []byte(`{"last_name":7}`)))
	})
}
