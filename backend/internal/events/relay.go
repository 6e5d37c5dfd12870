package events

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// Relay：本地有界队列 + worker 异步发送 + 有限重试，把领域事件转发到 Kafka
// 供下游服务消费（审计、统计等）。
// - Publish 只负责入队，绝不阻塞在线广播链路
// - Kafka 短暂不可用时靠队列吸收，后台慢慢补发
// - 队列满时降级丢弃，避免内存无限增长
type Relay struct {
	producer sarama.SyncProducer
	topic    string

	queue chan Event
	wg    sync.WaitGroup

	maxRetry    int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

type RelayOptions struct {
	QueueSize   int
	Workers     int
	MaxRetry    int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func NewRelay(producer sarama.SyncProducer, topic string, opt RelayOptions) *Relay {
	if opt.QueueSize <= 0 {
		opt.QueueSize = 1024
	}
	if opt.Workers <= 0 {
		opt.Workers = 2
	}
	r := &Relay{
		producer:    producer,
		topic:       topic,
		queue:       make(chan Event, opt.QueueSize),
		maxRetry:    opt.MaxRetry,
		baseBackoff: opt.BaseBackoff,
		maxBackoff:  opt.MaxBackoff,
	}
	for i := 0; i < opt.Workers; i++ {
		r.wg.Add(1)
		go r.workerLoop(i)
	}
	return r
}

// Publish 入队即返回；队列满直接丢弃并记日志
// （事件不要求强一致送达，断档客户端本来就要重新拉取权威状态）。
func (r *Relay) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case r.queue <- ev:
	default:
		log.Printf("relay: queue full, drop event type=%s", ev.Type)
	}
}

// Close 停止接收新事件并等 worker 把队列清空。
func (r *Relay) Close() {
	close(r.queue)
	r.wg.Wait()
}

func (r *Relay) workerLoop(workerID int) {
	defer r.wg.Done()
	for ev := range r.queue {
		r.sendWithRetry(workerID, ev)
	}
}

func (r *Relay) sendWithRetry(workerID int, ev Event) {
	for attempt := 0; attempt <= r.maxRetry; attempt++ {
		err := r.sendOnce(ev)
		if err == nil {
			return
		}
		if attempt == r.maxRetry {
			log.Printf("relay: kafka send failed, drop event type=%s worker=%d err=%v", ev.Type, workerID, err)
			return
		}
		// 退避，每次退避时间X2
		backoff := r.baseBackoff * time.Duration(1<<attempt)
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
		time.Sleep(backoff)
	}
}

func (r *Relay) sendOnce(ev Event) error {
	if r.producer == nil || r.topic == "" {
		return nil
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: r.topic,
		Key:   sarama.StringEncoder(ev.Type),
		Value: sarama.ByteEncoder(b),
	}
	_, _, err = r.producer.SendMessage(msg)
	return err
}

// Fanout 把同一个事件同时送进在线广播和 Kafka 转发。
type Fanout struct {
	Broadcaster *Broadcaster
	Relay       *Relay
}

func (f Fanout) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if f.Broadcaster != nil {
		f.Broadcaster.Publish(ev)
	}
	if f.Relay != nil {
		f.Relay.Publish(ev)
	}
}
