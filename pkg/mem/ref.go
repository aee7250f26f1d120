package mem

// Ref is a compressed reference: a narrow integer handle that stands in for
// a native pointer wherever a structure needs to reference another heap
// record. A Ref is resolved through the pool that owns the record, which
// plays the role of the process-wide heap base. Refs stay valid across pool
// growth; raw pointers obtained by resolving them do not.
type Ref uint32

// Null is the reserved sentinel for "no reference".
const Null Ref = 0

// IsNull reports whether the reference is the null sentinel.
func (r Ref) IsNull() bool { return r == Null }
