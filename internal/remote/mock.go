package remote

// MockTransport is a test double for Transport. A nil function field falls
// through to Base, or succeeds if Base is also nil.
type MockTransport struct {
	Base Transport

	PutFn      func(p string, data []byte) error
	RenameFn   func(oldPath, newPath string) error
	RemoveFn   func(p string) error
	MkdirAllFn func(p string) error
	GetFn      func(p string) ([]byte, error)
}

func (m *MockTransport) Put(p string, data []byte) error {
	if m.PutFn != nil {
		return m.PutFn(p, data)
	}
	if m.Base != nil {
		return m.Base.Put(p, data)
	}
	return nil
}

func (m *MockTransport) Rename(oldPath, newPath string) error {
	if m.RenameFn != nil {
		return m.RenameFn(oldPath, newPath)
	}
	if m.Base != nil {
		return m.Base.Rename(oldPath, newPath)
	}
	return nil
}

func (m *MockTransport) Remove(p string) error {
	if m.RemoveFn != nil {
		return m.RemoveFn(p)
	}
	if m.Base != nil {
		return m.Base.Remove(p)
	}
	return nil
}

func (m *MockTransport) MkdirAll(p string) error {
	if m.MkdirAllFn != nil {
		return m.MkdirAllFn(p)
	}
	if m.Base != nil {
		return m.Base.MkdirAll(p)
	}
	return nil
}

func (m *MockTransport) Get(p string) ([]byte, error) {
	if m.GetFn != nil {
		return m.GetFn(p)
	}
	if m.Base != nil {
		return m.Base.Get(p)
	}
	return nil, nil
}

func (m *MockTransport) Close() error {
	if m.Base != nil {
		return m.Base.Close()
	}
	return nil
}
