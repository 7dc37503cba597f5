package topology

// File is a path and its content on a node.
type File struct {
	path    string
	content string
}

func (f *File) Path() string    { return f.path }
func (f *File) Content() string { return f.content }

// SetContent replaces the content.
func (f *File) SetContent(content string) { f.content = content }

// AppendContent concatenates content to the end.
func (f *File) AppendContent(content string) { f.content += content }
