// Package geocode validates that submitted coordinates point at a
// serviceable location.
package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"relieflink-backend/internal/models"
	"relieflink-backend/internal/relieferr"
)

// Service area bounding box (Vietnam).
const (
	minLatitude  = 8.18
	maxLatitude  = 23.39
	minLongitude = 102.14
	maxLongitude = 109.46
)

// Validator checks whether coordinates are acceptable for a relief
// request.
type Validator interface {
	Validate(ctx context.Context, location models.Coordinates) error
}

// BoundsValidator accepts any coordinates inside the service area
// bounding box. It is the fallback when no geocoding service is
// configured.
type BoundsValidator struct{}

func (BoundsValidator) Validate(_ context.Context, location models.Coordinates) error {
	if location.Lat < minLatitude || location.Lat > maxLatitude ||
		location.Lng < minLongitude || location.Lng > maxLongitude {
		return relieferr.NewValidation("vi_tri", "coordinates are outside the service area")
	}
	return nil
}

// ReverseValidator resolves coordinates against an external reverse
// geocoding endpoint. When the endpoint is unreachable it degrades to
// the bounding box check rather than rejecting the request.
type ReverseValidator struct {
	client *resty.Client
	bounds BoundsValidator
	log    *logrus.Entry
}

func NewReverseValidator(endpoint string, timeout time.Duration) *ReverseValidator {
	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout).
		SetRetryCount(0)

	return &ReverseValidator{
		client: client,
		log:    logrus.WithField("component", "geocode"),
	}
}

type reverseResponse struct {
	CountryCode string `json:"country_code"`
	DisplayName string `json:"display_name"`
}

func (v *ReverseValidator) Validate(ctx context.Context, location models.Coordinates) error {
	if err := v.bounds.Validate(ctx, location); err != nil {
		return err
	}

	var result reverseResponse
	resp, err := v.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":    fmt.Sprintf("%f", location.Lat),
			"lon":    fmt.Sprintf("%f", location.Lng),
			"format": "json",
		}).
		SetResult(&result).
		Get("/reverse")

	if err != nil || resp.IsError() {
		// Degrade gracefully, the bounds check already passed
		v.log.WithError(err).Warn("reverse geocode unavailable, accepting coordinates on bounds check")
		return nil
	}

	if result.CountryCode != "" && result.CountryCode != "vn" {
		return relieferr.NewValidation("vi_tri", "coordinates resolve outside the service area")
	}

	return nil
}
