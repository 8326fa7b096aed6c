package snapshot

import (
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"k8s.io/utils/clock"

	"github.com/armadaproject/queuecapacity/internal/capacity/queue"
	"github.com/armadaproject/queuecapacity/internal/capacity/updater"
	"github.com/armadaproject/queuecapacity/internal/common/capacityerrors"
)

const (
	quotasTable = "quotas"
	passesTable = "passes"
	idIndex     = "id"
	queueIndex  = "queue"
)

// QueueQuotas are the results of one queue in one label.
// The primary key is QueuePath and Label.
type QueueQuotas struct {
	PassId     string
	QueuePath  string
	Label      string
	Quotas     queue.ResourceQuotas
	Capacities queue.Capacities
}

// Pass describes the pass whose results are published.
type Pass struct {
	Id          string
	PublishedAt time.Time
	Labels      []string
	Warnings    []updater.Warning
}

// Store holds the results of the most recently published pass so that they can be read while the next
// pass runs. Store is implemented on top of https://github.com/hashicorp/go-memdb: readers see either the
// previous pass or the new one, never a mix of both.
type Store struct {
	// Stores *QueueQuotas and *Pass.
	Db    *memdb.MemDB
	clock clock.PassiveClock
}

func NewStore() (*Store, error) {
	return NewStoreWithClock(clock.RealClock{})
}

// NewStoreWithClock returns a store stamping published passes with the time of c.
func NewStoreWithClock(c clock.PassiveClock) (*Store, error) {
	db, err := memdb.NewMemDB(storeSchema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Store{Db: db, clock: c}, nil
}

// Publish replaces the published results with those of result in a single transaction.
func (s *Store) Publish(result *updater.Result) error {
	txn := s.WriteTxn()
	defer txn.Abort()
	if _, err := txn.DeleteAll(quotasTable, idIndex); err != nil {
		return errors.WithStack(err)
	}
	if _, err := txn.DeleteAll(passesTable, idIndex); err != nil {
		return errors.WithStack(err)
	}
	for path, quotasByLabel := range result.Quotas {
		for label, quotas := range quotasByLabel {
			row := &QueueQuotas{
				PassId:     result.PassId,
				QueuePath:  path,
				Label:      label,
				Quotas:     quotas,
				Capacities: result.Capacities[path][label],
			}
			if err := txn.Insert(quotasTable, row); err != nil {
				return errors.WithStack(err)
			}
		}
	}
	pass := &Pass{
		Id:          result.PassId,
		PublishedAt: s.clock.Now(),
		Labels:      slices.Clone(result.Labels),
		Warnings:    slices.Clone(result.Warnings),
	}
	if err := txn.Insert(passesTable, pass); err != nil {
		return errors.WithStack(err)
	}
	txn.Commit()
	return nil
}

// ReadTxn returns a read-only transaction.
// Multiple read-only transactions can access the db concurrently
func (s *Store) ReadTxn() *memdb.Txn {
	return s.Db.Txn(false)
}

// WriteTxn returns a writeable transaction.
// Only a single write transaction may access the db at any given time
func (s *Store) WriteTxn() *memdb.Txn {
	return s.Db.Txn(true)
}

// CurrentPass returns the published pass, or nil if nothing has been published yet.
func (s *Store) CurrentPass(txn *memdb.Txn) (*Pass, error) {
	obj, err := txn.First(passesTable, idIndex)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if obj == nil {
		return nil, nil
	}
	return obj.(*Pass), nil
}

// Get returns the results of queuePath in label, or an *capacityerrors.ErrNotFound.
// The QueueQuotas returned by this function *must not* be subsequently modified
func (s *Store) Get(txn *memdb.Txn, queuePath, label string) (*QueueQuotas, error) {
	obj, err := txn.First(quotasTable, idIndex, queuePath, label)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if obj == nil {
		return nil, errors.WithStack(&capacityerrors.ErrNotFound{
			Type:    "queue",
			Value:   queuePath,
			Message: "no capacities published for label " + label,
		})
	}
	return obj.(*QueueQuotas), nil
}

// GetQueue returns the results of queuePath in every label, sorted by label, or an *capacityerrors.ErrNotFound.
func (s *Store) GetQueue(txn *memdb.Txn, queuePath string) ([]*QueueQuotas, error) {
	iter, err := txn.Get(quotasTable, queueIndex, queuePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result := collect(iter)
	if len(result) == 0 {
		return nil, errors.WithStack(&capacityerrors.ErrNotFound{
			Type:  "queue",
			Value: queuePath,
		})
	}
	return result, nil
}

// GetAll returns every published result, sorted by queue path and label.
func (s *Store) GetAll(txn *memdb.Txn) ([]*QueueQuotas, error) {
	iter, err := txn.Get(quotasTable, idIndex)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return collect(iter), nil
}

func collect(iter memdb.ResultIterator) []*QueueQuotas {
	result := make([]*QueueQuotas, 0)
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		result = append(result, obj.(*QueueQuotas))
	}
	slices.SortFunc(result, func(a, b *QueueQuotas) bool {
		if a.QueuePath != b.QueuePath {
			return a.QueuePath < b.QueuePath
		}
		return a.Label < b.Label
	})
	return result
}

// storeSchema creates the database schema: one row per queue and label, and a single row describing the pass.
func storeSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			quotasTable: {
				Name: quotasTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:   idIndex, // lookup by queue and label
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "QueuePath"},
								&labelFieldIndex{memdb.StringFieldIndex{Field: "Label"}},
							},
						},
					},
					queueIndex: {
						Name:    queueIndex, // lookup every label of a queue
						Unique:  false,
						Indexer: &memdb.StringFieldIndex{Field: "QueuePath"},
					},
				},
			},
			passesTable: {
				Name: passesTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Id"},
					},
				},
			},
		},
	}
}

// labelFieldIndex is a memdb.StringFieldIndex that also indexes the empty string, the label of the unlabeled partition.
type labelFieldIndex struct {
	memdb.StringFieldIndex
}

func (l *labelFieldIndex) FromObject(obj interface{}) (bool, []byte, error) {
	ok, val, err := l.StringFieldIndex.FromObject(obj)
	if err != nil || ok {
		return ok, val, err
	}
	return true, []byte{0}, nil
}
