package checkpoint

import (
	"io"

	"github.com/nelknet/dbsp/dbsperr"
)

// Epoch identifies one completed circuit step that has been
// checkpointed: BeginEpoch(n) brackets the WAL records produced while
// committing step n's state delta, and EndEpoch(n) marks the
// checkpoint as durable. An epoch with a BeginEpoch but no matching
// EndEpoch was interrupted mid-commit and must be discarded on
// recovery, not replayed partially.
type Epoch struct {
	ID      uint64
	Records []Record
}

// RecoveryResult is what a restore needs: the highest epoch whose
// commit is known-complete, and the data records within it.
type RecoveryResult struct {
	LastCompleteEpoch uint64
	Records           []Record
}

// Recover replays every record in r, keeping only complete epochs
// (those with both a BeginEpoch and a following EndEpoch before the
// stream ends or truncates) and discarding a final dangling
// BeginEpoch with no EndEpoch, which is exactly what a crash between
// "wrote some data records" and "wrote EndEpoch" leaves behind.
func Recover(r io.Reader) (RecoveryResult, error) {
	all, err := ReadAll(r)
	if err != nil {
		return RecoveryResult{}, err
	}

	var result RecoveryResult
	var current []Record
	inEpoch := false
	var currentID uint64

	for _, rec := range all {
		switch rec.Kind {
		case RecordBeginEpoch:
			inEpoch = true
			currentID = rec.Epoch
			current = nil
		case RecordData:
			if inEpoch {
				current = append(current, rec)
			}
		case RecordEndEpoch:
			if inEpoch && rec.Epoch == currentID {
				result.LastCompleteEpoch = currentID
				result.Records = current
				inEpoch = false
				current = nil
			}
		default:
			return RecoveryResult{}, dbsperr.New("checkpoint.recover", dbsperr.Serialization, nil)
		}
	}
	return result, nil
}

// CommitEpoch writes a complete BeginEpoch/data/EndEpoch bracket for
// one checkpoint, the unit Recover treats atomically.
func CommitEpoch(w *Writer, epoch uint64, payloads [][]byte) error {
	if err := w.WriteRecord(Record{Kind: RecordBeginEpoch, Epoch: epoch}); err != nil {
		return err
	}
	for _, p := range payloads {
		if err := w.WriteRecord(Record{Kind: RecordData, Epoch: epoch, Payload: p}); err != nil {
			return err
		}
	}
	return w.WriteRecord(Record{Kind: RecordEndEpoch, Epoch: epoch})
}
