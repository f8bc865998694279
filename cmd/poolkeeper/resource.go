package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

var resourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Manage pooled resources",
}

var resourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		for _, name := range []string{"driver", "class", "status", "pool", "limit", "offset"} {
			if v, _ := cmd.Flags().GetString(name); v != "" {
				q.Set(name, v)
			}
		}
		path := "/v1/resources/"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		body, err := apiRequest(http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		resources, _ := body["resources"].([]interface{})
		fmt.Printf("%-38s %-12s %-10s %-12s %-10s %s\n",
			"ID", "DRIVER", "STATUS", "POOL", "ALLOCATED", "PROCESSING")
		for _, item := range resources {
			r, _ := item.(map[string]interface{})
			pool, _ := r["pool"].(string)
			if pool == "" {
				pool = "-"
			}
			fmt.Printf("%-38v %-12v %-10v %-12s %-10v %v\n",
				r["id"], r["driver"], r["status"], pool, r["allocated"], r["processing"])
		}
		return nil
	},
}

var resourceShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiRequest(http.MethodGet, "/v1/resources/"+args[0], nil)
		if err != nil {
			return err
		}
		return printJSON(body["resource"])
	},
}

var resourceCreateCmd = &cobra.Command{
	Use:   "create --driver <name> [--set key=value ...]",
	Short: "Create a resource",
	RunE: func(cmd *cobra.Command, args []string) error {
		driverName, _ := cmd.Flags().GetString("driver")
		if driverName == "" {
			return fmt.Errorf("--driver is required")
		}
		resource := map[string]interface{}{"driver": driverName}
		sets, _ := cmd.Flags().GetStringArray("set")
		for _, kv := range sets {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("invalid --set value %q, expected key=value", kv)
			}
			resource[parts[0]] = parts[1]
		}
		body, err := apiRequest(http.MethodPost, "/v1/resources/",
			map[string]interface{}{"resource": resource})
		if err != nil {
			return err
		}
		return printJSON(body["resource"])
	},
}

var resourceAllocateCmd = &cobra.Command{
	Use:   "allocate <id>",
	Short: "Allocate a resource to yourself",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAllocated(args[0], true)
	},
}

var resourceDeallocateCmd = &cobra.Command{
	Use:   "deallocate <id>",
	Short: "Return an allocated resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAllocated(args[0], false)
	},
}

func setAllocated(id string, allocated bool) error {
	body, err := apiRequest(http.MethodPut, "/v1/resources/"+id, map[string]interface{}{
		"resource": map[string]interface{}{"allocated": allocated},
	})
	if err != nil {
		return err
	}
	return printJSON(body["resource"])
}

var resourceDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/v1/resources/" + args[0]
		if force, _ := cmd.Flags().GetBool("force"); force {
			path += "?force=true"
		}
		if _, err := apiRequest(http.MethodDelete, path, nil); err != nil {
			return err
		}
		fmt.Println("Resource deletion scheduled")
		return nil
	},
}

func init() {
	resourceListCmd.Flags().String("driver", "", "Filter by driver name")
	resourceListCmd.Flags().String("class", "", "Filter by resource class")
	resourceListCmd.Flags().String("status", "", "Filter by status")
	resourceListCmd.Flags().String("pool", "", "Filter by pool name")
	resourceListCmd.Flags().String("limit", "", "Maximum number of results")
	resourceListCmd.Flags().String("offset", "", "Offset into the result set")

	resourceCreateCmd.Flags().String("driver", "", "Driver to create the resource with")
	resourceCreateCmd.Flags().StringArray("set", nil, "Driver-specific field as key=value (repeatable)")

	resourceDeleteCmd.Flags().Bool("force", false, "Delete even if the driver's teardown fails")

	resourceCmd.AddCommand(resourceListCmd)
	resourceCmd.AddCommand(resourceShowCmd)
	resourceCmd.AddCommand(resourceCreateCmd)
	resourceCmd.AddCommand(resourceAllocateCmd)
	resourceCmd.AddCommand(resourceDeallocateCmd)
	resourceCmd.AddCommand(resourceDeleteCmd)
}
