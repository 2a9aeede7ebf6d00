package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vicradon/media-fetcher/app"
	"github.com/vicradon/media-fetcher/config"
	"github.com/vicradon/media-fetcher/models"
	"github.com/vicradon/media-fetcher/services"
)

const pollInterval = 500 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(0, 1)
)

var spinner = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Service logs would interleave with the prompts.
	logger := log.New(io.Discard, "", 0)
	if os.Getenv("CLI_VERBOSE") != "" {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	a := app.New(context.Background(), cfg, logger)

	reader := bufio.NewReader(os.Stdin)

	fmt.Println(titleStyle.Render("=== Media Fetcher CLI ==="))

	for {
		fmt.Println("\nCommands:")
		fmt.Println("  1. list     - List downloaded files")
		fmt.Println("  2. info     - Show media info for a URL")
		fmt.Println("  3. download - Download a single URL")
		fmt.Println("  4. queue    - Add URLs to the batch queue")
		fmt.Println("  5. start    - Process the batch queue")
		fmt.Println("  6. history  - Show recent downloads")
		fmt.Println("  7. quit     - Exit")
		fmt.Print("\nEnter command: ")

		input, err := reader.ReadString('\n')
		if err != nil {
			a.Wait()
			return
		}

		switch strings.TrimSpace(input) {
		case "1", "list":
			listFiles(cfg.DownloadDir)
		case "2", "info":
			showInfo(a, reader)
		case "3", "download":
			download(a, reader)
		case "4", "queue":
			addToQueue(a, reader)
		case "5", "start":
			startQueue(a)
		case "6", "history":
			showHistory(a)
		case "7", "quit", "exit":
			a.Wait()
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println(errorStyle.Render("Unknown command. Try again."))
		}
	}
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func listFiles(dir string) {
	fmt.Println(titleStyle.Render("\n=== Downloaded Files ==="))

	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Error reading download directory: %v", err)))
		return
	}

	n := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		n++
		fmt.Printf("  %d. %s %s\n", n, entry.Name(), dimStyle.Render("("+services.FormatFileSize(info.Size())+")"))
	}
	if n == 0 {
		fmt.Println("No files found.")
	}
}

func showInfo(a *app.App, reader *bufio.Reader) {
	url := prompt(reader, "Enter URL: ")
	if err := models.ValidateURL(url); err != nil {
		fmt.Println(errorStyle.Render(err.Error()))
		return
	}

	fmt.Println(infoStyle.Render("Fetching info..."))
	info, err := a.Fetcher.GetInfo(context.Background(), url)
	if err != nil {
		fmt.Println(errorStyle.Render("✗ " + err.Error()))
		return
	}

	lines := []string{
		titleStyle.Render(info.Title),
		"Platform: " + info.Platform.DisplayName(),
		"Type:     " + info.MediaType,
	}
	if info.Uploader != "" {
		lines = append(lines, "Uploader: "+info.Uploader)
	}
	if info.Duration > 0 {
		lines = append(lines, "Duration: "+(time.Duration(info.Duration)*time.Second).String())
	}
	if info.ImageCount > 0 {
		lines = append(lines, fmt.Sprintf("Images:   %d", info.ImageCount))
	}
	if len(info.Formats) > 0 {
		lines = append(lines, fmt.Sprintf("Formats:  %d available", len(info.Formats)))
	}
	fmt.Println(boxStyle.Render(strings.Join(lines, "\n")))
}

// readTarget asks for output type, format and quality. Empty answers take
// the defaults.
func readTarget(reader *bufio.Reader) (models.OutputType, string, string) {
	outputType := models.OutputType(prompt(reader, "Output type (video/audio/image) [video]: "))
	if outputType == "" {
		outputType = models.OutputVideo
	}
	format := prompt(reader, "Format (empty for default): ")
	quality := prompt(reader, "Quality (empty for default): ")
	return outputType, format, quality
}

func download(a *app.App, reader *bufio.Reader) {
	fmt.Println(titleStyle.Render("\n=== Download ==="))

	req := models.DownloadRequest{URL: prompt(reader, "Enter URL: ")}
	req.OutputType, req.Format, req.Quality = readTarget(reader)

	opts, err := req.Options()
	if err != nil {
		fmt.Println(errorStyle.Render(err.Error()))
		return
	}

	job := a.Downloads.Submit(opts)
	fmt.Printf("Downloading from %s as %s/%s...\n", job.Platform.DisplayName(), opts.Format, opts.Quality)

	for i := 0; ; i++ {
		time.Sleep(pollInterval)
		job, ok := a.Downloads.Get(job.ID)
		if !ok {
			fmt.Println(errorStyle.Render("Error: download record not found"))
			return
		}

		switch job.Status {
		case models.StatusCompleted:
			fmt.Print("\r\033[K")
			fmt.Println(successStyle.Render("✓ Download completed: " + job.Title))
			fmt.Printf("File saved to: %s (%s)\n", filepath.Join(a.Config.DownloadDir, filepath.Base(job.DownloadURL)), services.FormatFileSize(job.FileSize))
			return
		case models.StatusError:
			fmt.Print("\r\033[K")
			fmt.Println(errorStyle.Render("✗ Download failed: " + job.Error))
			return
		}

		fmt.Printf("\r\033[K%s %s %3d%% %s", spinner[i%len(spinner)], job.Status, job.Progress, dimStyle.Render(strings.TrimSpace(job.Speed+" "+job.ETA)))
	}
}

func addToQueue(a *app.App, reader *bufio.Reader) {
	fmt.Println(titleStyle.Render("\n=== Add to Queue ==="))
	fmt.Println("Enter one URL per line, empty line to finish:")

	var urls []string
	for {
		url := prompt(reader, "> ")
		if url == "" {
			break
		}
		urls = append(urls, url)
	}

	req := models.BatchDownloadRequest{URLs: urls}
	req.OutputType, req.Format, req.Quality = readTarget(reader)

	opts, err := req.Options()
	if err != nil {
		fmt.Println(errorStyle.Render(err.Error()))
		return
	}

	jobs := a.Queue.Add(context.Background(), opts)
	fmt.Println(successStyle.Render(fmt.Sprintf("Added %d items to the queue", len(jobs))))
}

func startQueue(a *app.App) {
	count := a.Queue.Start()
	if count == 0 {
		fmt.Println("No pending items in queue.")
		return
	}
	fmt.Printf("Processing %d items...\n", count)

	for i := 0; ; i++ {
		time.Sleep(pollInterval)

		jobs := a.Store.Queue.List()
		done, failed := 0, 0
		for _, job := range jobs {
			switch job.Status {
			case models.StatusCompleted:
				done++
			case models.StatusError:
				failed++
			}
		}

		if done+failed == len(jobs) {
			fmt.Print("\r\033[K")
			renderQueue(jobs)
			return
		}
		fmt.Printf("\r\033[K%s %d/%d finished", spinner[i%len(spinner)], done+failed, len(jobs))
	}
}

func renderQueue(jobs []models.Job) {
	for _, job := range jobs {
		name := job.Title
		if name == "" {
			name = job.URL
		}
		if job.Status == models.StatusCompleted {
			fmt.Println(successStyle.Render("✓ "+name), dimStyle.Render(services.FormatFileSize(job.FileSize)))
		} else {
			fmt.Println(errorStyle.Render("✗ "+name), dimStyle.Render(job.Error))
		}
	}
}

func showHistory(a *app.App) {
	fmt.Println(titleStyle.Render("\n=== Recent Downloads ==="))

	entries := a.Store.History.List(services.HistoryReadLimit)
	if len(entries) == 0 {
		fmt.Println("No downloads yet.")
		return
	}

	for _, entry := range entries {
		fmt.Printf("%s %s\n", successStyle.Render(entry.Title), dimStyle.Render(entry.Platform.DisplayName()))
		fmt.Printf("   %s/%s  %s  %s\n", entry.Format, entry.Quality, services.FormatFileSize(entry.FileSize), entry.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}
