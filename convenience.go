package flaxkv

// Thin typed sugar over Put/Get, for callers who know their value's kind
// up front and would rather not spell out the Value constructor at every
// call site. Additive surface, not part of the façade's operation table.

// PutString stages k=v, encoding v as a string Value.
func (s *Store) PutString(k Key, v string) error {
	return s.Put(k, StringValue(v))
}

// GetString reads k and requires its Value to be string-kind.
func (s *Store) GetString(k Key) (string, error) {
	v, err := s.Get(k)
	if err != nil {
		return "", err
	}

	if v.Kind() != ValString {
		return "", wrapOp("GetString", ErrWrongKind, withKey(k))
	}

	return v.String(), nil
}

// PutInt64 stages k=v, encoding v as an int64 Value.
func (s *Store) PutInt64(k Key, v int64) error {
	return s.Put(k, Int64Value(v))
}

// GetInt64 reads k and requires its Value to be int64-kind.
func (s *Store) GetInt64(k Key) (int64, error) {
	v, err := s.Get(k)
	if err != nil {
		return 0, err
	}

	if v.Kind() != ValInt64 {
		return 0, wrapOp("GetInt64", ErrWrongKind, withKey(k))
	}

	return v.Int(), nil
}

// PutFloat64 stages k=v, encoding v as a float64 Value.
func (s *Store) PutFloat64(k Key, v float64) error {
	return s.Put(k, Float64Value(v))
}

// GetFloat64 reads k and requires its Value to be float64-kind.
func (s *Store) GetFloat64(k Key) (float64, error) {
	v, err := s.Get(k)
	if err != nil {
		return 0, err
	}

	if v.Kind() != ValFloat64 {
		return 0, wrapOp("GetFloat64", ErrWrongKind, withKey(k))
	}

	return v.Float(), nil
}

// PutBytes stages k=v, encoding v as a byte-string Value.
func (s *Store) PutBytes(k Key, v []byte) error {
	return s.Put(k, BytesValue(v))
}

// GetBytes reads k and requires its Value to be bytes-kind.
func (s *Store) GetBytes(k Key) ([]byte, error) {
	v, err := s.Get(k)
	if err != nil {
		return nil, err
	}

	if v.Kind() != ValBytes {
		return nil, wrapOp("GetBytes", ErrWrongKind, withKey(k))
	}

	return v.Bytes(), nil
}
