package errkind

// Категории ошибок домена
type Kind int

const (
	Internal           Kind = iota // Unexpected failure
	NotFound                       // Node, version or grant does not exist
	AccessDenied                   // Acting user lacks the required permission
	InvalidInput                   // Bad name, bad parent, bad version number, empty batch
	QuotaExceeded                  // Upload would push usage above the limit
	Conflict                       // Cycle, duplicate grant, out-of-order version, illegal transition
	ContentMissing                 // Blob for a historic version is gone
	StorageUnavailable             // Blob store failed
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case AccessDenied:
		return "access_denied"
	case InvalidInput:
		return "invalid_input"
	case QuotaExceeded:
		return "quota_exceeded"
	case Conflict:
		return "conflict"
	case ContentMissing:
		return "content_missing"
	case StorageUnavailable:
		return "storage_unavailable"
	default:
		return "internal"
	}
}
