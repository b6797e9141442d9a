package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const ProviderMercadoPago = "mercadopago"

// MercadoPago talks to the Mercado Pago REST API. A hung provider
// would otherwise hang the request, so the client carries a timeout.
type MercadoPago struct {
	client *resty.Client
}

func NewMercadoPago(baseURL, accessToken string) *MercadoPago {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)
	return &MercadoPago{client: client}
}

func (m *MercadoPago) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	var pref Preference
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&pref).
		Post("/checkout/preferences")
	if err != nil {
		return nil, fmt.Errorf("mercadopago: create preference: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("mercadopago: create preference: %s: %s", resp.Status(), resp.String())
	}
	return &pref, nil
}

func (m *MercadoPago) GetPayment(ctx context.Context, id string) (*ProviderPayment, error) {
	var p ProviderPayment
	resp, err := m.client.R().
		SetContext(ctx).
		SetResult(&p).
		Get("/v1/payments/" + id)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: get payment %s: %w", id, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("mercadopago: get payment %s: %s", id, resp.Status())
	}
	return &p, nil
}
