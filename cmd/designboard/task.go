package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fentz26/designboard/internal/controlplane"
	"github.com/fentz26/designboard/internal/guard"
	"github.com/fentz26/designboard/internal/models"
	"github.com/fentz26/designboard/internal/store"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage design tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new task",
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details and history",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskAcceptCmd = &cobra.Command{
	Use:   "accept [task-id]",
	Short: "Assign a task to yourself",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAccept,
}

var taskMoveCmd = &cobra.Command{
	Use:   "move [task-id] [column]",
	Short: "Move a task to another column",
	Long: `Moves a task through the guard pipeline, exactly like a drop on the board.
Columns: ` + bucketNames() + `.`,
	Args: cobra.ExactArgs(2),
	RunE: runTaskMove,
}

var taskOrderCmd = &cobra.Command{
	Use:   "order [task-id] [order-number]",
	Short: "Set a task's order number",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskOrder,
}

var taskSendCmd = &cobra.Command{
	Use:   "send [task-id]",
	Short: "Mark the client logo as sent to the designer",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskSend,
}

var taskFilesCmd = &cobra.Command{
	Use:   "files [task-id] [file...]",
	Short: "Replace a task's design files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskFiles,
}

var taskRequestCmd = &cobra.Command{
	Use:   "request [task-id] [description...]",
	Short: "Open a change request on a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskRequest,
}

var taskResolveCmd = &cobra.Command{
	Use:   "resolve [change-request-id]",
	Short: "Resolve a change request",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskResolve,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete [task-id]",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

var (
	newTask      store.NewTask
	taskPriority string
	taskFilter   store.TaskFilter
	taskStatus   string
	confirmMove  bool
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskAcceptCmd, taskMoveCmd,
		taskOrderCmd, taskSendCmd, taskFilesCmd, taskRequestCmd, taskResolveCmd, taskDeleteCmd)

	taskAddCmd.Flags().StringVar(&newTask.CustomerName, "customer", "", "Customer name (required)")
	taskAddCmd.Flags().StringVar(&newTask.Title, "title", "", "Task title")
	taskAddCmd.Flags().StringVar(&taskPriority, "priority", string(models.PriorityNormal), "Priority (normal, urgent)")
	taskAddCmd.Flags().IntVar(&newTask.Quantity, "quantity", 0, "Garment quantity")
	taskAddCmd.Flags().BoolVar(&newTask.NeedsLogo, "needs-logo", false, "Wait for the client's logo before design starts")
	taskAddCmd.Flags().StringSliceVar(&newTask.DesignFiles, "file", nil, "Design file (repeatable)")
	taskAddCmd.Flags().StringVar(&newTask.OrderID, "order", "", "Linked order id")
	taskAddCmd.Flags().StringVar(&newTask.CampaignID, "campaign", "", "Linked campaign id")
	taskAddCmd.Flags().StringVar(&newTask.LeadID, "lead", "", "Linked lead id")
	taskAddCmd.MarkFlagRequired("customer")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status ("+statusNames()+")")
	taskListCmd.Flags().StringVar(&taskFilter.AssignedTo, "assignee", "", "Filter by assignee")
	taskListCmd.Flags().StringVar(&taskFilter.CreatedBy, "creator", "", "Filter by creator")
	taskListCmd.Flags().StringVar(&taskFilter.OrderID, "order", "", "Filter by linked order id")
	taskListCmd.Flags().StringVar(&taskFilter.CampaignID, "campaign", "", "Filter by linked campaign id")
	taskListCmd.Flags().StringVar(&taskFilter.LeadID, "lead", "", "Filter by linked lead id")

	taskMoveCmd.Flags().BoolVarP(&confirmMove, "yes", "y", false, "Confirm moving to completed without prompting")
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	switch p := models.Priority(taskPriority); p {
	case models.PriorityNormal, models.PriorityUrgent:
		newTask.Priority = p
	default:
		return fmt.Errorf("unknown priority %q", taskPriority)
	}
	newTask.CreatedBy = actorID

	resp, err := apiPost("/tasks", newTask)
	if err != nil {
		return err
	}

	var task models.Task
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Printf("Created task: %s (%s)\n", task.ID, task.Bucket())
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	if taskStatus != "" {
		taskFilter.Status = models.Status(taskStatus)
		if !taskFilter.Status.IsValid() {
			return fmt.Errorf("unknown status %q", taskStatus)
		}
	}

	resp, err := apiGet("/tasks" + listQuery(taskFilter))
	if err != nil {
		return err
	}

	var tasks []models.Task
	if err := json.Unmarshal(resp, &tasks); err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCUSTOMER\tCOLUMN\tPRIORITY\tASSIGNED TO\tORDER #")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(t.ID), truncate(t.CustomerName, 30), t.Bucket(), t.Priority, t.AssignedTo, t.OrderNumber)
	}
	w.Flush()
	return nil
}

// listQuery encodes the non-empty filter fields as GET /tasks parameters.
func listQuery(f store.TaskFilter) string {
	q := url.Values{}
	set := func(key, v string) {
		if v != "" {
			q.Set(key, v)
		}
	}
	set("status", string(f.Status))
	set("assignee", f.AssignedTo)
	set("creator", f.CreatedBy)
	set("order", f.OrderID)
	set("campaign", f.CampaignID)
	set("lead", f.LeadID)
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet(taskPath(args[0], ""))
	if err != nil {
		return err
	}

	var task models.Task
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", task.ID)
	fmt.Printf("Customer:    %s\n", task.CustomerName)
	if task.Title != "" {
		fmt.Printf("Title:       %s\n", task.Title)
	}
	fmt.Printf("Column:      %s\n", task.Bucket())
	fmt.Printf("Priority:    %s\n", task.Priority)
	if task.AssignedTo != "" {
		fmt.Printf("Assigned To: %s\n", task.AssignedTo)
	}
	fmt.Printf("Created By:  %s\n", task.CreatedBy)
	if task.OrderNumber != "" {
		fmt.Printf("Order #:     %s\n", task.OrderNumber)
	}
	if task.Quantity > 0 {
		fmt.Printf("Quantity:    %d\n", task.Quantity)
	}
	if len(task.DesignFiles) > 0 {
		fmt.Printf("Files:       %s\n", strings.Join(task.DesignFiles, ", "))
	}
	fmt.Printf("Created:     %s\n", task.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Printf("In Column:   %s\n", task.StatusChangedAt.Local().Format("2006-01-02 15:04"))
	if task.CompletedAt != nil {
		fmt.Printf("Completed:   %s\n", task.CompletedAt.Local().Format("2006-01-02 15:04"))
	}

	resp, err = apiGet(taskPath(args[0], "/history"))
	if err != nil {
		return err
	}
	var history []models.PDREntry
	if err := json.Unmarshal(resp, &history); err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}

	fmt.Println("\n--- HISTORY ---")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, e := range history {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format("01-02 15:04"), e.Action, e.Outcome, e.ActorID)
	}
	w.Flush()
	return nil
}

func runTaskAccept(cmd *cobra.Command, args []string) error {
	if _, err := apiPost(taskPath(args[0], "/accept"), struct{}{}); err != nil {
		return err
	}
	fmt.Printf("Task %s assigned to %s\n", args[0], actorID)
	return nil
}

func runTaskMove(cmd *cobra.Command, args []string) error {
	target, ok := models.ParseBucket(args[1])
	if !ok {
		return fmt.Errorf("unknown column %q (want one of %s)", args[1], bucketNames())
	}

	result, err := transition(args[0], target, confirmMove)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusPreconditionRequired {
		if !askConfirm(fmt.Sprintf("Move task %s to completed?", truncateID(args[0]))) {
			fmt.Println("Completion cancelled")
			return nil
		}
		result, err = transition(args[0], target, true)
	}
	if err != nil {
		return explainMoveError(args[0], err)
	}

	fmt.Printf("Moved task %s to %s\n", args[0], target)
	for _, e := range result.Effects {
		fmt.Printf("  effect: %s\n", e)
	}
	return nil
}

func transition(taskID string, target models.Bucket, confirmed bool) (*controlplane.TransitionResponse, error) {
	resp, err := apiPost(taskPath(taskID, "/transition"), controlplane.TransitionRequest{
		Target:    string(target),
		Confirmed: confirmed,
	})
	if err != nil {
		return nil, err
	}
	var result controlplane.TransitionResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// explainMoveError adds the follow-up command for aborts the user can fix.
func explainMoveError(taskID string, err error) error {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Response.Kind {
	case string(guard.MissingOrderNumber):
		return fmt.Errorf("%w\nset one with: designboard task order %s <order-number>", err, taskID)
	case string(guard.DuplicateOrderNumber):
		return fmt.Errorf("%w\norder %s is already completed on task %s", err,
			apiErr.Response.OrderNumber, truncateID(apiErr.Response.ConflictTaskID))
	}
	return err
}

func askConfirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func runTaskOrder(cmd *cobra.Command, args []string) error {
	body := map[string]string{"order_number": args[1]}
	if _, err := apiPut(taskPath(args[0], "/order-number"), body); err != nil {
		return err
	}
	fmt.Printf("Order number for %s set to %s\n", args[0], args[1])
	return nil
}

func runTaskSend(cmd *cobra.Command, args []string) error {
	if _, err := apiPost(taskPath(args[0], "/send-to-designer"), struct{}{}); err != nil {
		return err
	}
	fmt.Printf("Logo for %s sent to designer\n", args[0])
	return nil
}

func runTaskFiles(cmd *cobra.Command, args []string) error {
	files := args[1:]
	body := map[string][]string{"design_files": files}
	if _, err := apiPut(taskPath(args[0], "/design-files"), body); err != nil {
		return err
	}
	fmt.Printf("Task %s now has %d design files\n", args[0], len(files))
	return nil
}

func runTaskRequest(cmd *cobra.Command, args []string) error {
	body := map[string]string{"description": strings.Join(args[1:], " ")}
	resp, err := apiPost(taskPath(args[0], "/change-requests"), body)
	if err != nil {
		return err
	}

	var cr models.ChangeRequest
	if err := json.Unmarshal(resp, &cr); err != nil {
		return err
	}
	fmt.Printf("Opened change request %s on task %s\n", cr.ID, args[0])
	return nil
}

func runTaskResolve(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/change-requests/"+url.PathEscape(args[0])+"/resolve", struct{}{}); err != nil {
		return err
	}
	fmt.Printf("Resolved change request %s\n", args[0])
	return nil
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	if _, err := apiDelete(taskPath(args[0], "")); err != nil {
		return err
	}
	fmt.Printf("Deleted task %s\n", args[0])
	return nil
}

// --- Helpers ---

func taskPath(id, suffix string) string {
	return "/tasks/" + url.PathEscape(id) + suffix
}

func bucketNames() string {
	var names []string
	for _, b := range models.Buckets() {
		names = append(names, string(b))
	}
	return strings.Join(names, ", ")
}

func statusNames() string {
	var names []string
	for _, s := range models.Statuses() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
