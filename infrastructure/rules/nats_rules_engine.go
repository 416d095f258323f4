package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cardroom/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// Requester is the request/reply half of the NATS client
type Requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

// Responder serves request/reply subjects
type Responder interface {
	Respond(subject string, handler func([]byte) ([]byte, error)) error
}

// settleReply is the wire form of a remote settlement
type settleReply struct {
	interfaces.HandOutcome
	Error string `json:"error,omitempty"`
}

// NATSRulesEngine settles hands on a remote engine over NATS request/reply
type NATSRulesEngine struct {
	client  Requester
	subject string
	timeout time.Duration
}

// NewNATSRulesEngine creates a rules engine client for the given subject
func NewNATSRulesEngine(client Requester, subject string, timeout time.Duration) *NATSRulesEngine {
	return &NATSRulesEngine{
		client:  client,
		subject: subject,
		timeout: timeout,
	}
}

// SettleHand implements interfaces.RulesEngine
func (e *NATSRulesEngine) SettleHand(ctx context.Context, snapshot interfaces.HandSnapshot) (*interfaces.HandOutcome, error) {
	request, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal hand snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	data, err := e.client.Request(ctx, e.subject, request)
	if err != nil {
		return nil, fmt.Errorf("failed to reach rules engine: %w", err)
	}

	var reply settleReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode rules engine reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("rules engine rejected hand %d: %s", snapshot.HandID, reply.Error)
	}

	log.WithFields(log.Fields{
		"tableID": snapshot.TableID,
		"handID":  snapshot.HandID,
		"winners": len(reply.Winners),
	}).Debug("Remote rules engine settled hand")

	outcome := reply.HandOutcome
	return &outcome, nil
}

// Serve exposes an engine on a NATS subject so other processes can use it
// through NATSRulesEngine
func Serve(responder Responder, subject string, engine interfaces.RulesEngine, timeout time.Duration) error {
	return responder.Respond(subject, func(data []byte) ([]byte, error) {
		var snapshot interfaces.HandSnapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return nil, fmt.Errorf("invalid hand snapshot: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		outcome, err := engine.SettleHand(ctx, snapshot)
		if err != nil {
			return nil, err
		}
		return json.Marshal(settleReply{HandOutcome: *outcome})
	})
}
