// Package booking derives direct contact methods for a provider. There is
// no payment flow; a booking is the user reaching out over WhatsApp, phone
// or email.
package booking

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"rateright/backend/features/provider"
)

type ContactMethod struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Value string `json:"value"`
}

type Booking struct {
	ProviderID     string          `json:"provider_id"`
	ProviderName   string          `json:"provider_name"`
	ServiceType    string          `json:"service_type,omitempty"`
	ContactMethods []ContactMethod `json:"contact_methods"`
}

type Service struct {
	providers provider.Repository
}

func NewService(providers provider.Repository) *Service {
	return &Service{providers: providers}
}

// Book resolves the provider and returns every contact channel it exposes.
func (s *Service) Book(ctx context.Context, providerID, serviceType, requesterName string) (*Booking, error) {
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, err
	}

	b := &Booking{
		ProviderID:     p.ID,
		ProviderName:   p.Name,
		ServiceType:    serviceType,
		ContactMethods: []ContactMethod{},
	}
	if p.Phone != "" {
		b.ContactMethods = append(b.ContactMethods,
			ContactMethod{Type: "whatsapp", Label: "Chat on WhatsApp", Value: whatsappLink(p.Phone, serviceType, requesterName)},
			ContactMethod{Type: "phone", Label: "Call " + p.Name, Value: "tel:" + p.Phone},
		)
	}
	if p.Email != "" {
		b.ContactMethods = append(b.ContactMethods,
			ContactMethod{Type: "email", Label: "Email " + p.Name, Value: "mailto:" + p.Email})
	}
	return b, nil
}

// whatsappLink builds a wa.me deep link with a prefilled greeting. WhatsApp
// wants the number as bare digits with country code.
func whatsappLink(phone, serviceType, requesterName string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	msg := "Hi, I found you on Rate Right and would like to book a service."
	if serviceType != "" {
		msg = fmt.Sprintf("Hi, I found you on Rate Right and would like to book %s.", strings.ReplaceAll(serviceType, "_", " "))
	}
	if requesterName != "" {
		msg += " - " + requesterName
	}
	return fmt.Sprintf("https://wa.me/%s?text=%s", digits, url.QueryEscape(msg))
}
