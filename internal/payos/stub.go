package payos

import (
	"context"
	"fmt"
	"sync"
)

// StubLinkCreator records link requests and returns canned checkout data.
// Used in tests and when no gateway credentials are configured.
type StubLinkCreator struct {
	mu       sync.Mutex
	Requests []LinkRequest
	Err      error
}

// CreatePaymentLink implements LinkCreator.
func (s *StubLinkCreator) CreatePaymentLink(_ context.Context, req LinkRequest) (*Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.Requests = append(s.Requests, req)
	return &Link{
		CheckoutURL:   fmt.Sprintf("https://pay.example.com/checkout/%d", req.OrderCode),
		QRCode:        fmt.Sprintf("qr-%d", req.OrderCode),
		PaymentLinkID: fmt.Sprintf("link-%d", req.OrderCode),
	}, nil
}

// Count returns the number of links created.
func (s *StubLinkCreator) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
