package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewUpstreamError("geocode", KindTimeout, 0, cause)

	assert.ErrorIs(t, err, cause)

	var ue *UpstreamError
	assert.ErrorAs(t, err, &ue)
	assert.Equal(t, "geocode", ue.Upstream)
	assert.Equal(t, KindTimeout, ue.Kind)
}

func TestKindOf(t *testing.T) {
	rejection := NewUpstreamError("postal", KindClientRejection, 400, errors.New("bad city"))

	assert.Equal(t, KindClientRejection, KindOf(rejection))
	assert.Equal(t, KindClientRejection, KindOf(fmt.Errorf("wrapped: %w", rejection)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, IsClientRejection(NewUpstreamError("postal", KindClientRejection, 400, errors.New("x"))))
	assert.True(t, IsTimeout(NewUpstreamError("postal", KindTimeout, 0, errors.New("x"))))
	assert.True(t, IsUnavailable(NewUpstreamError("postal", KindUnavailable, 0, errors.New("x"))))
	assert.False(t, IsTimeout(NewUpstreamError("postal", KindServerError, 500, errors.New("x"))))
	assert.False(t, IsClientRejection(nil))
}

func TestGeoPointSentinel(t *testing.T) {
	assert.True(t, SentinelPoint().IsSentinel())
	assert.True(t, GeoPoint{}.IsSentinel(), "zero value behaves as the sentinel")
	assert.False(t, NewGeoPoint(-84.767, 43.597).IsSentinel())

	p := NewGeoPoint(-84.767, 43.597)
	assert.Equal(t, -84.767, p.Lng())
	assert.Equal(t, 43.597, p.Lat())
}
