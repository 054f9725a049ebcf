package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/hupe1980/clusterfs"
)

type command struct {
	usage   string
	summary string
	run     func(ctx context.Context, a *app) error
}

var commandOrder = []string{"init", "put", "get", "append", "rewrite", "rm", "ls", "info", "repair", "export"}

var commands = map[string]command{
	"init":    {"init -f <container>", "Create an empty container.", runInit},
	"put":     {"put -f <container> [file]", "Store a new file from a path or stdin and print its handle.", runPut},
	"get":     {"get -f <container> <handle>", "Write a file to stdout.", runGet},
	"append":  {"append -f <container> <handle> [file]", "Append a path or stdin to a file.", runAppend},
	"rewrite": {"rewrite -f <container> <handle> [file]", "Replace the content of a file, keeping its handle.", runRewrite},
	"rm":      {"rm -f <container> <handle>...", "Delete files.", runRemove},
	"ls":      {"ls -f <container>", "List live files and their lengths.", runList},
	"info":    {"info -f <container>", "Print container statistics.", runInfo},
	"repair":  {"repair -f <container>", "Pad a torn tail to the next cluster boundary.", runRepair},
	"export":  {"export -f <container> [--target local|minio|s3]", "Copy every live file to an object store.", runExport},
}

// withFS opens the container, runs fn and closes it, keeping the first error.
func (a *app) withFS(fn func(fsys *clusterfs.FileSystem) error) (err error) {
	fsys, err := a.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fsys.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(fsys)
}

// input returns the reader for the optional file argument at i.
func (a *app) input(i int) (io.ReadCloser, error) {
	if i >= len(a.args) || a.args[i] == "-" {
		return io.NopCloser(a.stdin), nil
	}
	return os.Open(a.args[i])
}

func runInit(_ context.Context, a *app) error {
	return a.withFS(func(fsys *clusterfs.FileSystem) error {
		fmt.Fprintf(a.stdout, "%s: min cluster size %d\n", fsys.Path(), fsys.MinClusterSize())
		return nil
	})
}

func runPut(_ context.Context, a *app) error {
	in, err := a.input(0)
	if err != nil {
		return err
	}
	defer in.Close()

	return a.withFS(func(fsys *clusterfs.FileSystem) error {
		var h clusterfs.Handle
		if a.blob {
			data, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			if h, err = fsys.PutBlob(data); err != nil {
				return err
			}
		} else {
			var w *clusterfs.File
			if h, w, err = fsys.AllocFile(); err != nil {
				return err
			}
			if err := copyAndClose(w, in); err != nil {
				return err
			}
		}
		fmt.Fprintln(a.stdout, h)
		return nil
	})
}

func runGet(_ context.Context, a *app) error {
	s, err := a.arg(0, "handle")
	if err != nil {
		return err
	}
	h, err := parseHandle(s)
	if err != nil {
		return err
	}
	return a.withFS(func(fsys *clusterfs.FileSystem) error {
		if a.blob {
			data, err := fsys.GetBlob(h)
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(data)
			return err
		}
		r, err := fsys.GetFileReader(h)
		if err != nil {
			return err
		}
		_, err = io.Copy(a.stdout, r)
		return err
	})
}

func runAppend(_ context.Context, a *app) error {
	s, err := a.arg(0, "handle")
	if err != nil {
		return err
	}
	h, err := parseHandle(s)
	if err != nil {
		return err
	}
	in, err := a.input(1)
	if err != nil {
		return err
	}
	defer in.Close()

	return a.withFS(func(fsys *clusterfs.FileSystem) error {
		w, _, err := fsys.AppendFile(h, clusterfs.NotSet)
		if err != nil {
			return err
		}
		return copyAndClose(w, in)
	})
}

func runRewrite(_ context.Context, a *app) error {
	s, err := a.arg(0, "handle")
	if err != nil {
		return err
	}
	h, err := parseHandle(s)
	if err != nil {
		return err
	}
	in, err := a.input(1)
	if err != nil {
		return err
	}
	defer in.Close()

	return a.withFS(func(fsys *clusterfs.FileSystem) error {
		if a.blob {
			data, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			return fsys.ReplaceBlob(h, data)
		}
		w, err := fsys.RewriteFile(h)
		if err != nil {
			return err
		}
		return copyAndClose(w, in)
	})
}

func runRemove(_ context.Context, a *app) error {
	if len(a.args) == 0 {
		return fmt.Errorf("missing handle")
	}
	handles := make([]clusterfs.Handle, len(a.args))
	for i, s := range a.args {
		h, err := parseHandle(s)
		if err != nil {
			return err
		}
		handles[i] = h
	}
	return a.withFS(func(fsys *clusterfs.FileSystem) error {
		for _, h := range handles {
			if err := fsys.DeleteFile(h); err != nil {
				return err
			}
		}
		return nil
	})
}

func runList(ctx context.Context, a *app) error {
	return a.withFS(func(fsys *clusterfs.FileSystem) error {
		handles, err := fsys.GetAllFiles(ctx, nil)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "HANDLE\tLENGTH")
		for _, h := range handles {
			n, err := fsys.FileLength(h)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%d\t%d\n", h, n)
		}
		return tw.Flush()
	})
}

func runInfo(ctx context.Context, a *app) error {
	return a.withFS(func(fsys *clusterfs.FileSystem) error {
		st, err := fsys.Stats(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "path\t%s\n", fsys.Path())
		fmt.Fprintf(tw, "min cluster size\t%d\n", fsys.MinClusterSize())
		fmt.Fprintf(tw, "growth\t%s\n", fsys.GrowthStrategy())
		fmt.Fprintf(tw, "length\t%d\n", st.Length)
		fmt.Fprintf(tw, "clusters\t%d\n", st.Clusters)
		fmt.Fprintf(tw, "live files\t%d\n", st.LiveFiles)
		fmt.Fprintf(tw, "free chains\t%d\n", st.FreeChains)
		fmt.Fprintf(tw, "used bytes\t%d\n", st.UsedBytes)
		fmt.Fprintf(tw, "capacity bytes\t%d\n", st.CapacityBytes)
		return tw.Flush()
	})
}

func runRepair(_ context.Context, a *app) error {
	return a.withFS(func(fsys *clusterfs.FileSystem) error {
		padded, err := fsys.Repair()
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "padded %d bytes\n", padded)
		return nil
	})
}

func runExport(ctx context.Context, a *app) error {
	store, err := newStore(ctx, a.cfg.Export)
	if err != nil {
		return err
	}
	return a.withFS(func(fsys *clusterfs.FileSystem) error {
		files, n, err := fsys.Export(ctx, store, a.cfg.Export.Prefix)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "exported %d files, %d bytes\n", files, n)
		return nil
	})
}

func copyAndClose(w *clusterfs.File, r io.Reader) error {
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
