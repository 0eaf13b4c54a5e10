package cache

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory — потокобезопасный in-process кэш с TTL
// используется, когда Redis не настроен, и в тестах
type Memory struct {
	// sync.Map выбрал для обеспечения потокобезопасности
	// ключ — string, значение — *entry
	storage sync.Map
	now     func() time.Time
}

// NewMemory создаёт новый экземпляр кэша
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// Put добавляет или полностью перезаписывает значение
// ttl <= 0 означает запись без срока жизни
func (c *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := &entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.storage.Store(key, e)
	return nil
}

// Get возвращает значение и true, если ключ есть и не истёк
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.load(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (c *Memory) Has(_ context.Context, key string) (bool, error) {
	_, ok := c.load(key)
	return ok, nil
}

func (c *Memory) Forget(_ context.Context, key string) error {
	c.storage.Delete(key)
	return nil
}

// FlushPattern удаляет ключи, подходящие под glob-шаблон, и возвращает их число
func (c *Memory) FlushPattern(_ context.Context, pattern string) (int, error) {
	const op = "repository.cache.Memory.FlushPattern"

	if _, err := path.Match(pattern, ""); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	removed := 0
	c.storage.Range(func(k, _ any) bool {
		key := k.(string)
		if ok, _ := path.Match(pattern, key); ok {
			c.storage.Delete(key)
			removed++
		}
		return true
	})
	return removed, nil
}

// load выполняет безопасное приведение типа и лениво вычищает истёкшие записи
func (c *Memory) load(key string) (*entry, bool) {
	value, ok := c.storage.Load(key)
	if !ok {
		return nil, false
	}

	e, ok := value.(*entry)
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		// удаляем, только если запись не успели перезаписать
		c.storage.CompareAndDelete(key, e)
		return nil, false
	}
	return e, true
}
