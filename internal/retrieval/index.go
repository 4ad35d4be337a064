package retrieval

import (
	"context"
	"sync"

	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// Index combines the durable chunk repository with the in-memory vector store.
// Writes go to the repository first; each process embeds chunks it has not
// seen yet on demand, so the store stays fresh without shared memory.
type Index struct {
	repo   ChunkRepository
	store  *VectorStore
	logger *logging.Logger

	mu       sync.Mutex
	hydrated map[Collection]hydration
	locks    sync.Map // Collection -> *sync.Mutex
}

type hydration struct {
	count   int
	version int64
}

func NewIndex(repo ChunkRepository, store *VectorStore, logger *logging.Logger) *Index {
	if repo == nil {
		panic("retrieval: chunk repository cannot be nil")
	}
	if store == nil {
		panic("retrieval: vector store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Index{
		repo:     repo,
		store:    store,
		logger:   logger,
		hydrated: make(map[Collection]hydration),
	}
}

// Index appends chunks to a collection.
func (x *Index) Index(ctx context.Context, collection Collection, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := x.repo.Append(ctx, collection, chunks); err != nil {
		return err
	}
	return x.ensureHydrated(ctx, collection)
}

// Reset replaces everything stored for a collection with chunks.
func (x *Index) Reset(ctx context.Context, collection Collection, chunks []string) error {
	if err := x.repo.Replace(ctx, collection, chunks); err != nil {
		return err
	}
	return x.ensureHydrated(ctx, collection)
}

func (x *Index) Search(ctx context.Context, collection Collection, query string, k int) ([]Passage, error) {
	if err := x.ensureHydrated(ctx, collection); err != nil {
		x.logger.Warn("failed to hydrate collection", "collection", collection, "error", err)
	}
	return x.store.Search(ctx, collection, query, k)
}

func (x *Index) ensureHydrated(ctx context.Context, collection Collection) error {
	lock := x.lockFor(collection)
	lock.Lock()
	defer lock.Unlock()

	chunks, err := x.repo.Get(ctx, collection)
	if err != nil {
		return err
	}
	version, err := x.repo.Version(ctx, collection)
	if err != nil {
		return err
	}

	x.mu.Lock()
	state := x.hydrated[collection]
	x.mu.Unlock()

	if version != state.version || state.count > len(chunks) {
		if err := x.store.Replace(ctx, collection, chunks); err != nil {
			return err
		}
	} else if state.count < len(chunks) {
		if err := x.store.Add(ctx, collection, chunks[state.count:]); err != nil {
			return err
		}
	} else {
		return nil
	}

	x.mu.Lock()
	x.hydrated[collection] = hydration{count: len(chunks), version: version}
	x.mu.Unlock()
	return nil
}

func (x *Index) lockFor(collection Collection) *sync.Mutex {
	lock, _ := x.locks.LoadOrStore(collection, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
