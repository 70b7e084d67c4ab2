package sdk_test

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/beanbocchi/cumulus/pkg/sdk"
)

func ExampleClient_Archive() {
	// Create client
	client := sdk.NewClient("http://localhost:8088", "http://localhost:8089")

	// Prepare content
	content := bytes.NewBufferString("This is object content")

	// Archive object
	result, err := client.Archive("my-collection", "docs/readme.txt", content)
	if err != nil {
		fmt.Printf("Archive failed: %v\n", err)
		return
	}

	fmt.Printf("Archived %s as version %s\n", result.Key, result.VersionID)
}

func ExampleClient_Retrieve() {
	// Create client
	client := sdk.NewClient("http://localhost:8088", "http://localhost:8089")

	// Retrieve object
	body, info, err := client.Retrieve("my-collection", "docs/readme.txt", nil)
	if err != nil {
		fmt.Printf("Retrieve failed: %v\n", err)
		return
	}
	defer body.Close()

	// Save to file
	output, err := os.Create("readme.txt")
	if err != nil {
		fmt.Printf("Failed to create file: %v\n", err)
		return
	}
	defer output.Close()

	if _, err := io.Copy(output, body); err != nil {
		fmt.Printf("Failed to save: %v\n", err)
		return
	}

	fmt.Printf("Retrieved version %s (%d bytes)\n", info.VersionID, info.ContentLength)
}

func ExampleClient_StartConjoined() {
	// Create client with password authentication
	client := sdk.NewClient("http://localhost:8088", "http://localhost:8089").
		WithPassword("collection-password")

	// Start a conjoined archive for a large upload
	entry, err := client.StartConjoined("my-collection", "backup.tar")
	if err != nil {
		fmt.Printf("Start failed: %v\n", err)
		return
	}

	// Upload parts, then finish
	part := bytes.NewBufferString("part one of the backup")
	if _, err := client.ArchivePart("my-collection", "backup.tar", entry.ConjoinedID, 1, part); err != nil {
		fmt.Printf("Part upload failed: %v\n", err)
		return
	}

	final, err := client.FinishConjoined("my-collection", "backup.tar", entry.ConjoinedID)
	if err != nil {
		fmt.Printf("Finish failed: %v\n", err)
		return
	}

	fmt.Printf("Archive %s is %s\n", final.ConjoinedID, final.State)
}
