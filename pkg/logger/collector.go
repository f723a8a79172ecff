package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships aggregated log batches, typically to a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // unique entries that force a flush
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry is one warn/error line deduplicated over a flush window.
// Fields are those of the first occurrence.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

type LogCollector struct {
	config *CollectionConfig
	logMap map[string]*AggregatedLogEntry
	mutex  sync.Mutex
	flushC chan []AggregatedLogEntry
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	d := &LogCollector{
		config: config,
		logMap: make(map[string]*AggregatedLogEntry),
		flushC: make(chan []AggregatedLogEntry, 4),
		done:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// AddLog counts an occurrence. Entries are keyed by level, caller and
// message so varying field values do not defeat deduplication.
func (d *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, caller)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if entry, ok := d.logMap[key]; ok {
		entry.Count++
		entry.LastSeen = now
		return
	}
	d.logMap[key] = &AggregatedLogEntry{
		Level:     level,
		Message:   message,
		Fields:    fields,
		Caller:    caller,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	if len(d.logMap) >= d.config.CountThreshold {
		d.queueFlushLocked()
	}
}

func entryKey(level, message, caller string) string {
	sum := sha256.Sum256([]byte(level + "\x00" + caller + "\x00" + message))
	return hex.EncodeToString(sum[:8])
}

// queueFlushLocked hands the current window to the publisher goroutine.
// When the publisher is backed up the window keeps accumulating instead.
func (d *LogCollector) queueFlushLocked() {
	if len(d.logMap) == 0 {
		return
	}
	batch := make([]AggregatedLogEntry, 0, len(d.logMap))
	for _, e := range d.logMap {
		batch = append(batch, *e)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].FirstSeen.Before(batch[j].FirstSeen) })

	select {
	case d.flushC <- batch:
		d.logMap = make(map[string]*AggregatedLogEntry)
	default:
	}
}

func (d *LogCollector) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case batch := <-d.flushC:
			d.publish(batch)
		case <-ticker.C:
			d.mutex.Lock()
			d.queueFlushLocked()
			d.mutex.Unlock()
		case <-d.done:
			d.mutex.Lock()
			d.queueFlushLocked()
			d.mutex.Unlock()
			for {
				select {
				case batch := <-d.flushC:
					d.publish(batch)
				default:
					return
				}
			}
		}
	}
}

func (d *LogCollector) publish(batch []AggregatedLogEntry) {
	if d.config.Publisher == nil || len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.config.Publisher.PublishMessage(ctx, d.config.Topic, batch); err != nil {
		// The logger itself feeds this collector, so report on stderr.
		fmt.Fprintf(os.Stderr, "log collector: publish %d entries: %v\n", len(batch), err)
	}
}

// Close flushes what is pending and stops the publisher goroutine.
func (d *LogCollector) Close() {
	d.once.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}
