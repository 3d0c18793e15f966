package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/RyanBlaney/sonido-vox/logging"
)

// ErrModelNotFound is returned by Store.Load when nothing has been saved
var ErrModelNotFound = errors.New("classifier: model not found")

// Store persists fitted classifiers
type Store interface {
	Load(ctx context.Context) (Classifier, error)
	Save(ctx context.Context, c Classifier) error
}

// FileStore keeps the model in a single file
type FileStore struct {
	path string
}

// NewFileStore creates a store at path. Parent directories are created on
// Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the model file location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (Classifier, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", s.path, err)
	}
	return Unmarshal(data)
}

// Save writes to a temporary file and renames it into place so readers
// never observe a partial model
func (s *FileStore) Save(_ context.Context, c Classifier) error {
	data, err := Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}
	return nil
}

// BadgerOptions configures a BadgerStore
type BadgerOptions struct {
	// Dir is the database directory. Required unless InMemory is set.
	Dir string
	// InMemory keeps the database in memory only
	InMemory bool
	// Name selects the model key, model:<Name>
	Name string
	// Logger receives badger's own log output. Nil uses the global logger.
	Logger logging.Logger
}

// BadgerStore keeps models in a badger database keyed by name
type BadgerStore struct {
	db  *badger.DB
	key []byte
}

// NewBadgerStore opens (or creates) the database
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("classifier: BadgerOptions.Dir is required for on-disk mode")
	}
	if opts.Name == "" {
		return nil, errors.New("classifier: BadgerOptions.Name is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "badger"})
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db, key: []byte("model:" + opts.Name)}, nil
}

func (s *BadgerStore) Load(_ context.Context) (Classifier, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return Unmarshal(data)
}

func (s *BadgerStore) Save(_ context.Context, c Classifier) error {
	data, err := Marshal(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, data)
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger output into the structured logger, dropping
// its chatty info and debug lines
type badgerLogger struct {
	logger logging.Logger
}

func (l badgerLogger) Errorf(f string, v ...any) {
	l.logger.Error(fmt.Errorf(f, v...), "badger error")
}

func (l badgerLogger) Warningf(f string, v ...any) {
	l.logger.Warn(fmt.Sprintf(f, v...))
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}
