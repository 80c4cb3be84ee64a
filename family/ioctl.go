package family

// AFValue is the address-family constant a caller would pass to socket(2)
// for this protocol family, the Go-native analogue of the
// IOCTL_VM_SOCKETS_GET_AF_VALUE discovery ioctl of spec.md §6. There is no
// real protocol-family table to register into in this reimplementation, so
// the value is a fixed sentinel rather than something allocated at init.
const AFValue = 40

// GetAFValue implements the GET_AF_VALUE discovery operation.
func (f *Family) GetAFValue() int { return AFValue }

// GetLocalCID implements the GET_LOCAL_CID discovery operation
// (IOCTL_VM_SOCKETS_GET_LOCAL_CID): the context id this family's transport
// identifies as.
func (f *Family) GetLocalCID() uint32 {
	return f.Ops.Transport.ContextID()
}
