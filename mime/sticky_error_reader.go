package mime

// Read forwards to the wrapped reader until an error is seen, after which
// every subsequent Read returns that same error without touching r.r again.
func (r *stickyErrorReader) Read(p []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err = r.r.Read(p)
	r.err = err
	return n, err
}

// Close satisfies the File interface for a section served straight out of
// an in-memory part (a spilled-to-disk part is opened as an *os.File
// instead); the underlying *io.SectionReader has nothing to release.
func (s sectionReadCloser) Close() error {
	return nil
}
