// Package notify publishes terminal job events to an MQTT broker so
// downstream systems (yard dashboards, alerting) learn about finished
// plans without polling this client.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/railops/rakeplan/core/model"
	"github.com/railops/rakeplan/core/orchestrator"
	"github.com/railops/rakeplan/infra/logger"
)

const connectTimeout = 5 * time.Second

// MQTTNotifier publishes job outcomes over MQTT.
type MQTTNotifier struct {
	client mqtt.Client
	prefix string
	qos    byte
	log    logger.Logger
}

// outcomeMessage is the published payload.
type outcomeMessage struct {
	JobID    string          `json:"job_id"`
	Scenario string          `json:"scenario_name"`
	Status   model.JobStatus `json:"status"`
	PlanID   string          `json:"plan_id,omitempty"`
	Error    string          `json:"error,omitempty"`
	Time     time.Time       `json:"time"`
}

// NewMQTTNotifier connects to the broker and returns the notifier.
func NewMQTTNotifier(cfg Config) (*MQTTNotifier, error) {
	cfg.SetDefaults()
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect timeout to %s", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return &MQTTNotifier{
		client: client,
		prefix: cfg.TopicPrefix,
		qos:    cfg.QoS,
		log:    logger.New("mqtt-notify"),
	}, nil
}

// Start subscribes to the orchestrator's events and publishes each
// terminal outcome to <prefix>/<job_id>. It returns once the context is
// cancelled or the bus closes.
func (n *MQTTNotifier) Start(ctx context.Context, orc *orchestrator.Orchestrator) {
	sub := orc.Events()
	go func() {
		defer orc.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch ev.Kind {
				case orchestrator.EventCompleted, orchestrator.EventFailed, orchestrator.EventCancelled:
					n.publish(ev)
				}
			}
		}
	}()
}

func (n *MQTTNotifier) publish(ev orchestrator.JobEvent) {
	msg := outcomeMessage{
		JobID:    ev.JobID,
		Scenario: ev.Scenario,
		Status:   ev.Status,
		PlanID:   ev.PlanID,
		Time:     ev.Time,
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		n.log.Errorf("encode outcome for job %s: %v", ev.JobID, err)
		return
	}
	topic := n.prefix + "/" + ev.JobID
	tok := n.client.Publish(topic, n.qos, false, payload)
	if !tok.WaitTimeout(connectTimeout) || tok.Error() != nil {
		n.log.Errorf("publish to %s failed: %v", topic, tok.Error())
	}
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
}
