// Command fat32ctl is a thin CLI front end over the disk package, for
// poking at a FAT32 image file from a shell.
//
// Grounded on the teacher's cmd/main.go: one cli.App, one cli.Command per
// verb, log.Fatalf on any top-level error.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mdraven/fat32fs/blockio"
	"github.com/mdraven/fat32fs/disk"
	"github.com/mdraven/fat32fs/dirent"
	"github.com/mdraven/fat32fs/ptype"
)

func main() {
	app := cli.App{
		Usage: "Inspect and mutate FAT32 disk image files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "image",
				Usage:    "path to the disk image file",
				Required: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list the root directory's entries",
				Action: listCommand,
			},
			{
				Name:      "cat",
				Usage:     "print a root file's contents to stdout",
				ArgsUsage: "NAME",
				Action:    catCommand,
			},
			{
				Name:      "append",
				Usage:     "append a local file's bytes to a root file",
				ArgsUsage: "NAME LOCAL_PATH",
				Action:    appendCommand,
			},
			{
				Name:      "create",
				Usage:     "create an empty file in the root directory",
				ArgsUsage: "NAME",
				Action:    createCommand,
			},
			{
				Name:   "stat",
				Usage:  "print the partition's type and the block read/write counters",
				Action: statCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

// openDisk opens the image named by the --image flag and initializes a
// Disk over it.
func openDisk(context *cli.Context) (*disk.Disk, *os.File, error) {
	path := context.String("image")

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("opening image %q: %w", path, err)
	}

	reader, writer := blockio.FromReadWriterAt(file)
	d := disk.New(reader, writer)
	if err := d.Init(); err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("initializing %q: %w", path, err)
	}

	return d, file, nil
}

func listCommand(context *cli.Context) error {
	d, file, err := openDisk(context)
	if err != nil {
		return err
	}
	defer file.Close()

	it, err := d.ListRootFiles()
	if err != nil {
		return err
	}

	for {
		batch, err := it.Next()
		if err != nil && err != io.EOF {
			return err
		}
		for _, f := range batch {
			if f.IsLFN {
				continue
			}
			fmt.Printf("%-11s  attr=%#02x  cluster=%d  size=%d\n", f.Name, byte(f.Attr), f.StartCluster(), f.FileSize)
		}
		if err == io.EOF || len(batch) == 0 {
			break
		}
	}

	return nil
}

func findRootFile(d *disk.Disk, name string) (dirent.File, error) {
	it, err := d.ListRootFiles()
	if err != nil {
		return dirent.File{}, err
	}

	for {
		batch, err := it.Next()
		if err != nil && err != io.EOF {
			return dirent.File{}, err
		}
		for _, f := range batch {
			if !f.IsLFN && f.Name == name {
				return f, nil
			}
		}
		if err == io.EOF || len(batch) == 0 {
			break
		}
	}

	return dirent.File{}, fmt.Errorf("no root file named %q", name)
}

func catCommand(context *cli.Context) error {
	name := context.Args().First()
	if name == "" {
		return fmt.Errorf("cat requires a file name argument")
	}

	d, file, err := openDisk(context)
	if err != nil {
		return err
	}
	defer file.Close()

	target, err := findRootFile(d, name)
	if err != nil {
		return err
	}

	stream, err := d.ReadFileInChunks(target)
	if err != nil {
		return err
	}

	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := os.Stdout.Write(chunk); err != nil {
			return err
		}
	}
}

func appendCommand(context *cli.Context) error {
	name := context.Args().Get(0)
	localPath := context.Args().Get(1)
	if name == "" || localPath == "" {
		return fmt.Errorf("append requires NAME and LOCAL_PATH arguments")
	}

	d, file, err := openDisk(context)
	if err != nil {
		return err
	}
	defer file.Close()

	target, err := findRootFile(d, name)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("reading %q: %w", localPath, err)
	}

	if err := d.AppendToFile(&target, data); err != nil {
		return err
	}

	fmt.Printf("%s: new size %d\n", target.Name, target.FileSize)
	return nil
}

func createCommand(context *cli.Context) error {
	name := context.Args().First()
	if name == "" {
		return fmt.Errorf("create requires a file name argument")
	}

	d, file, err := openDisk(context)
	if err != nil {
		return err
	}
	defer file.Close()

	created, err := d.CreateFile(name)
	if err != nil {
		return err
	}

	fmt.Printf("created %s at cluster %d\n", created.Name, created.StartCluster())
	return nil
}

func statCommand(context *cli.Context) error {
	d, file, err := openDisk(context)
	if err != nil {
		return err
	}
	defer file.Close()

	name, ok := ptype.Name(d.PartitionType())
	if !ok {
		name = "unknown"
	}
	fmt.Printf("partition type: %s\n", name)
	fmt.Printf("reads=%d writes=%d\n", d.Reads(), d.Writes())
	return nil
}
