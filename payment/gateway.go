// Package payment abstracts the external money rails. The engine never talks
// to card/bank/mobile-money providers directly; it only consumes a capability
// that reports success or failure for deposits and payouts.
package payment

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Gateway is the external payment capability. InitiatePayout is called when
// an admin approves a withdrawal; a returned error fails the withdrawal and
// refunds the hold.
type Gateway interface {
	InitiateDeposit(ctx context.Context, accountID int64, amount int64) (transactionRef string, err error)
	InitiatePayout(ctx context.Context, accountID int64, amount int64) (transactionRef string, err error)
}

// LoggingGateway is a development stand-in that accepts every transaction
// and logs it. Production deployments inject a real provider adapter.
type LoggingGateway struct{}

// NewLoggingGateway creates a gateway that approves everything
func NewLoggingGateway() *LoggingGateway {
	return &LoggingGateway{}
}

func (g *LoggingGateway) InitiateDeposit(ctx context.Context, accountID int64, amount int64) (string, error) {
	ref := uuid.New().String()
	log.WithFields(log.Fields{
		"accountId": accountID,
		"amount":    amount,
		"ref":       ref,
	}).Info("Deposit initiated")
	return ref, nil
}

func (g *LoggingGateway) InitiatePayout(ctx context.Context, accountID int64, amount int64) (string, error) {
	ref := uuid.New().String()
	log.WithFields(log.Fields{
		"accountId": accountID,
		"amount":    amount,
		"ref":       ref,
	}).Info("Withdrawal payout initiated")
	return ref, nil
}
