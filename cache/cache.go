package cache

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"

	"github.com/facebookresearch/Hanabi-SPARTA/config"
)

// The cache is a package used for results that are expensive to compute
// and asked for more than once, such as the joint-search checks that both
// players of a game run for the same hypothesis. Loads of different keys
// run concurrently; a second caller of a key being loaded waits for it.

type entry struct {
	once sync.Once
	obj  interface{}
	err  error
}

type Cache struct {
	sync.Mutex
	objects map[string]*entry
	hits    int
	misses  int
}

type LoadFunc func(cfg *config.Config, key string) (interface{}, error)

// GlobalObjectCache is our global object cache, of course.
var GlobalObjectCache *Cache

var globalMu sync.Mutex

func New() *Cache {
	return &Cache{objects: make(map[string]*entry)}
}

// Load returns the object cached under key, calling loadFunc to make it if
// there is none. Failed loads are not cached.
func (c *Cache) Load(cfg *config.Config, key string, loadFunc LoadFunc) (interface{}, error) {
	c.Lock()
	e, ok := c.objects[key]
	if !ok {
		e = &entry{}
		c.objects[key] = e
		c.misses++
	} else {
		c.hits++
	}
	c.Unlock()

	e.once.Do(func() {
		log.Debug().Str("key", key).Msg("loading into cache")
		e.obj, e.err = loadFunc(cfg, key)
	})
	if e.err != nil {
		c.Lock()
		if c.objects[key] == e {
			delete(c.objects, key)
		}
		c.Unlock()
		return nil, e.err
	}
	return e.obj, nil
}

func (c *Cache) Len() int {
	c.Lock()
	defer c.Unlock()
	return len(c.objects)
}

// Stats returns the number of lookups that found a key and that did not.
func (c *Cache) Stats() (hits, misses int) {
	c.Lock()
	defer c.Unlock()
	return c.hits, c.misses
}

func CreateGlobalObjectCache() {
	globalMu.Lock()
	GlobalObjectCache = New()
	globalMu.Unlock()
}

func Load(cfg *config.Config, name string, loadFunc LoadFunc) (interface{}, error) {
	globalMu.Lock()
	if GlobalObjectCache == nil {
		GlobalObjectCache = New()
	}
	c := GlobalObjectCache
	globalMu.Unlock()
	return c.Load(cfg, name, loadFunc)
}

// Key hashes its parts into a short cache key.
func Key(parts ...interface{}) string {
	h := xxhash.New()
	for _, p := range parts {
		fmt.Fprint(h, p)
		h.Write([]byte{0})
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], h.Sum64())
	return fmt.Sprintf("%x", b)
}
