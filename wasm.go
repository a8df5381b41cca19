package wasmbridge

// Memory is guest linear memory as seen by the host. wazero's api.Memory
// satisfies it. Reads return views into guest memory, valid until the guest
// next grows its memory.
type Memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, data []byte) bool
	Size() uint32
}
