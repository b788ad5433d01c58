package mqtt

import (
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// Handler is the callback when a message is received.
type Handler func(topic string, payload []byte)

// ConnectHandler is to handle connect/disconnect events.
type ConnectHandler func(*Queue)

// Queue wraps the MQTT client with prefixed topics and shared
// subscriptions: one broker subscription per topic filter however many
// handlers are attached to it.
type Queue struct {
	Client       paho.Client
	TopicPrefix  string
	QoS          byte
	OnConnect    ConnectHandler
	OnDisconnect ConnectHandler

	lock sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// Subscription is a handler attached to a topic filter.
type Subscription struct {
	Token paho.Token

	queue   *Queue
	topic   string
	handler Handler
}

// MatchTopic matches topic with pattern.
func MatchTopic(topic, pattern string) bool {
	levels, filters := strings.Split(topic, "/"), strings.Split(pattern, "/")
	for n, filter := range filters {
		if filter == "#" && n+1 == len(filters) {
			return true
		}
		if n >= len(levels) {
			return false
		}
		if filter != "+" && filter != levels[n] {
			return false
		}
	}
	return len(levels) == len(filters)
}

func isWildcard(topic string) bool {
	return strings.Contains(topic, "+") || strings.HasSuffix(topic, "#")
}

// NewQueue creates Queue.
func NewQueue(options *paho.ClientOptions, topicPrefix string) *Queue {
	q := &Queue{TopicPrefix: topicPrefix}
	options.SetOnConnectHandler(q.OnConnectHandler)
	options.SetConnectionLostHandler(q.ConnectionLostHandler)
	q.Client = paho.NewClient(options)
	return q
}

// NewQueueFromURL creates Queue from URL.
func NewQueueFromURL(brokerURL string) (*Queue, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	qos, err := QoSFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	q := NewQueue(opts, topicPrefix)
	q.QoS = qos
	return q, nil
}

// Connect connects the client.
func (q *Queue) Connect() paho.Token {
	return q.Client.Connect()
}

// Close implements io.Closer.
func (q *Queue) Close() error {
	q.Client.Disconnect(250)
	return nil
}

// Sub attaches handler to a topic filter under the prefix.
func (q *Queue) Sub(topic string, handler Handler) *Subscription {
	sub := &Subscription{queue: q, topic: topic, handler: handler}
	q.lock.Lock()
	if q.subs == nil {
		q.subs = make(map[string]map[*Subscription]struct{})
	}
	set, exists := q.subs[topic]
	if !exists {
		set = make(map[*Subscription]struct{})
		q.subs[topic] = set
	}
	set[sub] = struct{}{}
	q.lock.Unlock()

	if exists || !q.Client.IsConnected() {
		// subscribed already, or Resubscribe will do it on connect
		sub.Token = &paho.DummyToken{}
		return sub
	}
	glog.V(2).Infof("SUB %q", q.TopicPrefix+topic)
	sub.Token = q.Client.Subscribe(q.TopicPrefix+topic, q.QoS, q.dispatch)
	return sub
}

// Pub publishes to a topic with the queue QoS.
func (q *Queue) Pub(topic string, payload []byte) paho.Token {
	return q.PubWith(topic, payload, q.QoS, false)
}

// PubWith publishes with QoS and retain settings.
func (q *Queue) PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token {
	glog.V(2).Infof("PUB %q %d bytes", q.TopicPrefix+topic, len(payload))
	return q.Client.Publish(q.TopicPrefix+topic, qos, retain, payload)
}

// Topics returns the subscribed topic filters.
func (q *Queue) Topics() []string {
	q.lock.RLock()
	defer q.lock.RUnlock()
	topics := make([]string, 0, len(q.subs))
	for topic := range q.subs {
		topics = append(topics, topic)
	}
	return topics
}

// Resubscribe subscribes all existing topics, used when connected.
func (q *Queue) Resubscribe() paho.Token {
	filters := make(map[string]byte)
	for _, topic := range q.Topics() {
		filters[q.TopicPrefix+topic] = q.QoS
	}
	if len(filters) == 0 {
		return &paho.DummyToken{}
	}
	glog.V(2).Infof("SUB %d topics", len(filters))
	return q.Client.SubscribeMultiple(filters, q.dispatch)
}

// OnConnectHandler is the default implementation of paho.OnConnectHandler.
func (q *Queue) OnConnectHandler(paho.Client) {
	glog.Info("MQTT connected")
	q.Resubscribe()
	if h := q.OnConnect; h != nil {
		h(q)
	}
}

// ConnectionLostHandler is the default implementation of paho.ConnectLostHandler.
func (q *Queue) ConnectionLostHandler(c paho.Client, err error) {
	glog.Warningf("MQTT connection lost: %v", err)
	if h := q.OnDisconnect; h != nil {
		h(q)
	}
}

func (q *Queue) dispatch(c paho.Client, msg paho.Message) {
	topic := msg.Topic()
	if !strings.HasPrefix(topic, q.TopicPrefix) {
		return
	}
	glog.V(2).Infof("RCV %q", topic)
	q.deliver(topic[len(q.TopicPrefix):], msg.Payload())
}

// deliver calls every handler whose filter matches topic.
func (q *Queue) deliver(topic string, payload []byte) int {
	var handlers []Handler
	q.lock.RLock()
	for filter, set := range q.subs {
		if filter != topic && (!isWildcard(filter) || !MatchTopic(topic, filter)) {
			continue
		}
		for sub := range set {
			handlers = append(handlers, sub.handler)
		}
	}
	q.lock.RUnlock()
	for _, h := range handlers {
		h(topic, payload)
	}
	return len(handlers)
}

// Close detaches the handler, the broker subscription goes with the last one.
func (s *Subscription) Close() error {
	q := s.queue
	q.lock.Lock()
	set := q.subs[s.topic]
	delete(set, s)
	last := set != nil && len(set) == 0
	if last {
		delete(q.subs, s.topic)
	}
	q.lock.Unlock()
	if !last || !q.Client.IsConnected() {
		return nil
	}
	glog.V(2).Infof("UNSUB %q", q.TopicPrefix+s.topic)
	token := q.Client.Unsubscribe(q.TopicPrefix + s.topic)
	token.Wait()
	return token.Error()
}
