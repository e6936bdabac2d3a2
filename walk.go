/*
 *  MIT License
 *
 *  Copyright (c) 2020 Nicolas JUHEL
 *
 *  Permission is hereby granted, free of charge, to any person obtaining a copy
 *  of this software and associated documentation files (the "Software"), to deal
 *  in the Software without restriction, including without limitation the rights
 *  to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *  copies of the Software, and to permit persons to whom the Software is
 *  furnished to do so, subject to the following conditions:
 *
 *  The above copyright notice and this permission notice shall be included in all
 *  copies or substantial portions of the Software.
 *
 *  THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *  IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *  FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *  AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *  LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *  OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *  SOFTWARE.
 *
 */

package archivefs

// WalkFunc is called once per directory (including archive boundaries,
// which this namespace always presents as directories) visited by Walk.
// Returning an error stops the walk and propagates that error out of Walk.
type WalkFunc func(dir string, subdirs []string, files []string) error

// Walk lazily visits root and every directory beneath it — crossing into
// nested archives transparently, since an archive boundary is just
// another directory in this namespace — calling fn once per directory
// with its immediate subdirectories and files, in the order ListDir
// returns them: entry insertion order inside an archive, file-name order
// for a plain OS directory.
func (fs *ArchiveFS) Walk(root string, fn WalkFunc) error {
	names, err := fs.ListDir(root)
	if err != nil {
		return err
	}

	subdirs := make([]string, 0, len(names))
	files := make([]string, 0, len(names))
	for _, name := range names {
		child := joinComposite(root, name)
		info, ierr := fs.GetInfo(child)
		if ierr != nil {
			continue
		}
		if info.Kind == KindDir {
			subdirs = append(subdirs, name)
		} else {
			files = append(files, name)
		}
	}

	if err := fn(root, subdirs, files); err != nil {
		return err
	}
	for _, sd := range subdirs {
		if err := fs.Walk(joinComposite(root, sd), fn); err != nil {
			return err
		}
	}
	return nil
}

func joinComposite(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
