package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/aws/smithy-go/ptr"

	"github.com/beanbocchi/cumulus/pkg/sdk"
)

const (
	readerURL  = "http://localhost:8080"
	writerURL  = "http://localhost:8081"
	collection = "example-collection"
)

func main() {
	client := sdk.NewClient(readerURL, writerURL)

	fmt.Println("=== Archive Example ===")
	result, err := client.Archive(collection, "greeting.txt",
		bytes.NewBufferString("hello from the cumulus gateway"))
	if err != nil {
		fmt.Printf("Archive error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Stored version %s (%d bytes)\n", result.VersionID, result.Size)

	fmt.Println("\n=== Retrieve Example ===")
	body, info, err := client.Retrieve(collection, "greeting.txt", nil)
	if err != nil {
		fmt.Printf("Retrieve error: %v\n", err)
		os.Exit(1)
	}
	content, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		fmt.Printf("Read error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Got %q (version %s)\n", content, info.VersionID)

	fmt.Println("\n=== Ranged Retrieve Example ===")
	body, _, err = client.Retrieve(collection, "greeting.txt", &sdk.RetrieveOptions{
		RangeStart: ptr.Int64(6),
		RangeEnd:   ptr.Int64(9),
	})
	if err != nil {
		fmt.Printf("Retrieve error: %v\n", err)
		os.Exit(1)
	}
	partial, _ := io.ReadAll(body)
	body.Close()
	fmt.Printf("Bytes 6-9: %q\n", partial)

	fmt.Println("\n=== Conjoined Example ===")
	entry, err := client.StartConjoined(collection, "large.bin")
	if err != nil {
		fmt.Printf("Start error: %v\n", err)
		os.Exit(1)
	}
	for part := int32(1); part <= 3; part++ {
		payload := bytes.Repeat([]byte{byte('a' + part - 1)}, 1024)
		if _, err := client.ArchivePart(collection, "large.bin", entry.ConjoinedID, part, bytes.NewReader(payload)); err != nil {
			fmt.Printf("Part %d error: %v\n", part, err)
			os.Exit(1)
		}
	}
	if _, err := client.FinishConjoined(collection, "large.bin", entry.ConjoinedID); err != nil {
		fmt.Printf("Finish error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Conjoined archive assembled")

	fmt.Println("\n=== Usage Example ===")
	report, err := client.Usage(collection)
	if err != nil {
		fmt.Printf("Usage error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Added %d bytes, retrieved %d bytes\n", report.BytesAdded, report.BytesRetrieved)
}
