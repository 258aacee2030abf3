package clusterview

import (
	"fmt"

	"github.com/couchbase/clusterview/repo"
)

// DescriptorReader parses the current discovery-lite descriptor.
// Readers must not block waiting for finality; a non-final descriptor is
// returned as-is and the view builder surfaces NO_ESTABLISHED_VIEW for
// it.
type DescriptorReader interface {
	Read(sess repo.Session) (Descriptor, error)
}

// descriptorDTO is the wire shape of the descriptor record.
type descriptorDTO struct {
	ViewID        string `json:"viewId"`
	SeqNum        int64  `json:"seqNum"`
	Final         bool   `json:"final"`
	LocalSlotID   int    `json:"localSlotId"`
	ActiveSlotIDs []int  `json:"activeSlotIds"`
}

type metakvDescriptorReader struct {
	path string
}

// NewMetakvDescriptorReader builds a DescriptorReader that reads the
// discovery-lite descriptor as a JSON blob at path, the same way other
// small cluster-coordination records are stored in metakv.
func NewMetakvDescriptorReader(path string) DescriptorReader {
	return &metakvDescriptorReader{path: path}
}

func (r *metakvDescriptorReader) Read(sess repo.Session) (Descriptor, error) {
	var dto descriptorDTO
	found, _, err := sess.GetJSON(r.path, &dto)
	if err != nil {
		return Descriptor{}, err
	}
	if !found {
		return Descriptor{}, fmt.Errorf("no discovery-lite descriptor at %s", r.path)
	}
	return Descriptor{
		ViewID:        dto.ViewID,
		SeqNum:        dto.SeqNum,
		Final:         dto.Final,
		LocalSlotID:   dto.LocalSlotID,
		ActiveSlotIDs: dto.ActiveSlotIDs,
	}, nil
}
