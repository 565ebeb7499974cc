package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"coda/types"

	redis "github.com/redis/go-redis/v9"
)

// jobExpiration is how long a finished job record stays retrievable
const jobExpiration = 24 * time.Hour

// JobStore persists conversion job records so they survive a server restart
type JobStore interface {
	Save(job *types.ConversionJob) error
	Get(id string) (*types.ConversionJob, bool)
	All() []*types.ConversionJob
}

// NewJobStore returns a Redis-backed store when a Redis server answers at
// addr, otherwise an in-memory store. Redis being down is a degradation,
// never an error.
func NewJobStore(addr string) JobStore {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		log.Printf("Warning: Redis not available at %s, job records will not survive restarts: %v", addr, err)
		client.Close()
		return NewMemoryJobStore()
	}

	log.Printf("Redis connected at %s", addr)
	return &redisJobStore{client: client}
}

// redisJobStore keeps job records under job:<id> keys with a TTL
type redisJobStore struct {
	client *redis.Client
}

func jobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

func (s *redisJobStore) Save(job *types.ConversionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.Set(context.Background(), jobKey(job.ID), data, jobExpiration).Err()
}

func (s *redisJobStore) Get(id string) (*types.ConversionJob, bool) {
	val, err := s.client.Get(context.Background(), jobKey(id)).Result()
	if err != nil {
		return nil, false
	}

	var job types.ConversionJob
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		log.Printf("Warning: corrupt job record %s: %v", id, err)
		return nil, false
	}
	return &job, true
}

func (s *redisJobStore) All() []*types.ConversionJob {
	ctx := context.Background()
	var jobs []*types.ConversionJob

	iter := s.client.Scan(ctx, 0, jobKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		val, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var job types.ConversionJob
		if err := json.Unmarshal([]byte(val), &job); err != nil {
			continue
		}
		jobs = append(jobs, &job)
	}
	if err := iter.Err(); err != nil {
		log.Printf("Warning: Redis scan failed: %v", err)
	}
	return jobs
}

// NewMemoryJobStore creates a store that lives only as long as the process
func NewMemoryJobStore() JobStore {
	return &memoryJobStore{records: make(map[string]*types.ConversionJob)}
}

type memoryJobStore struct {
	mu      sync.RWMutex
	records map[string]*types.ConversionJob
}

func (s *memoryJobStore) Save(job *types.ConversionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	// Store a snapshot, not the live job the worker is still mutating
	var record types.ConversionJob
	if err := json.Unmarshal(data, &record); err != nil {
		return err
	}

	s.mu.Lock()
	s.records[job.ID] = &record
	s.mu.Unlock()
	return nil
}

func (s *memoryJobStore) Get(id string) (*types.ConversionJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.records[id]
	return job, ok
}

func (s *memoryJobStore) All() []*types.ConversionJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*types.ConversionJob, 0, len(s.records))
	for _, job := range s.records {
		jobs = append(jobs, job)
	}
	return jobs
}
