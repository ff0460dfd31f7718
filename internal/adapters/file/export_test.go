package file

// SetRename swaps the rename step of Save.
func SetRename(s *Store, fn func(oldpath, newpath string) error) {
	s.rename = fn
}
