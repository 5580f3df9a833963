package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage job postings",
}

var jobForm struct {
	title, currency, experience string
	description, city, aboutUs  string
	qualities, offer, skills    string
	salaryFrom, salaryTo        int
}

func jobFlags(f *pflag.FlagSet) {
	f.StringVar(&jobForm.title, "title", "", "job title")
	f.IntVar(&jobForm.salaryFrom, "salary-from", 0, "lower salary bound")
	f.IntVar(&jobForm.salaryTo, "salary-to", 0, "upper salary bound")
	f.StringVar(&jobForm.currency, "currency", "", "salary currency")
	f.StringVar(&jobForm.experience, "experience", "", "required experience")
	f.StringVar(&jobForm.description, "description", "", "description")
	f.StringVar(&jobForm.city, "city", "", "city")
	f.StringVar(&jobForm.aboutUs, "about", "", "about the company")
	f.StringVar(&jobForm.qualities, "qualities", "", "required qualities")
	f.StringVar(&jobForm.offer, "offer", "", "what is offered")
	f.StringVar(&jobForm.skills, "skills", "", "key skills")
}

// jobRequest builds the job fields. Salary bounds are sent only when set.
func jobRequest(cmd *cobra.Command) map[string]any {
	req := map[string]any{
		"title":              jobForm.title,
		"currency":           jobForm.currency,
		"experience":         jobForm.experience,
		"description":        jobForm.description,
		"city":               jobForm.city,
		"about_us":           jobForm.aboutUs,
		"required_qualities": jobForm.qualities,
		"offer":              jobForm.offer,
		"key_skills":         jobForm.skills,
	}
	if cmd.Flags().Changed("salary-from") {
		req["salary_from"] = jobForm.salaryFrom
	}
	if cmd.Flags().Changed("salary-to") {
		req["salary_to"] = jobForm.salaryTo
	}
	return req
}

var jobPostCmd = &cobra.Command{
	Use:   "post",
	Short: "Post a job as the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call("CreateJob", jobRequest(cmd))
		if err != nil {
			return err
		}
		printWrite("Job", resp)
		return nil
	},
}

var jobEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Replace a job posting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := jobRequest(cmd)
		req["id"] = args[0]
		resp, err := call("UpdateJob", req)
		if err != nil {
			return err
		}
		printWrite("Job", resp)
		return nil
	},
}

var jobRemoveCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a job posting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call("DeleteJob", map[string]any{"id": args[0]})
		if err != nil {
			return err
		}
		if !printed(resp) {
			fmt.Printf("Job %s deleted\n", resp["id"])
		}
		return nil
	},
}

var jobShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a job posting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call("GetJob", map[string]any{"id": args[0]})
		if err != nil {
			return err
		}
		if printed(resp) {
			return nil
		}
		j, ok := resp["job"].(map[string]any)
		if !ok {
			fmt.Println("No such job.")
			return nil
		}
		fmt.Printf("%s\n", j["title"])
		fmt.Printf("Salary:     %s\n", j["salary"])
		fmt.Printf("City:       %s\n", j["city"])
		fmt.Printf("Experience: %s\n", j["experience"])
		fmt.Printf("Employer:   %s\n", j["employer_id"])
		fmt.Printf("Posted:     %s\n", millis(j["created_at"]))
		for _, field := range []string{"description", "about_us", "required_qualities", "offer", "key_skills"} {
			if s, _ := j[field].(string); s != "" {
				fmt.Printf("\n%s\n", s)
			}
		}
		printSource(resp)
		return nil
	},
}

var jobFilter struct {
	employer, title, city, experience string
	minSalary, limit                  int
}

func filterRequest(cmd *cobra.Command) map[string]any {
	req := map[string]any{
		"title_prefix": jobFilter.title,
		"city_prefix":  jobFilter.city,
		"experience":   jobFilter.experience,
		"limit":        jobFilter.limit,
	}
	if jobFilter.employer != "" {
		req["employer_id"] = jobFilter.employer
	}
	if cmd.Flags().Changed("min-salary") {
		req["min_salary"] = jobFilter.minSalary
	}
	return req
}

func printJobs(resp map[string]any) {
	if printed(resp) {
		return
	}
	list := items(resp)
	if len(list) == 0 {
		fmt.Println("No jobs found.")
		return
	}
	for _, j := range list {
		fmt.Printf("%-20s %-30s %-16s %s\n", j["id"], j["title"], j["city"], j["salary"])
	}
	printSource(resp)
}

var jobListCmd = &cobra.Command{
	Use:   "ls",
	Short: "Search job postings",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call("SearchJobs", filterRequest(cmd))
		if err != nil {
			return err
		}
		printJobs(resp)
		return nil
	},
}

var jobWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow job postings as they change",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stream("WatchJobs", filterRequest(cmd), func(resp map[string]any) error {
			if !jsonFlag {
				fmt.Println("---")
			}
			printJobs(resp)
			return nil
		})
	},
}

func init() {
	jobFlags(jobPostCmd.Flags())
	jobFlags(jobEditCmd.Flags())
	for _, c := range []*cobra.Command{jobListCmd, jobWatchCmd} {
		f := c.Flags()
		f.StringVar(&jobFilter.employer, "employer", "", "employer id")
		f.StringVar(&jobFilter.title, "title", "", "title prefix")
		f.StringVar(&jobFilter.city, "city", "", "city prefix")
		f.StringVar(&jobFilter.experience, "experience", "", "required experience")
		f.IntVar(&jobFilter.minSalary, "min-salary", 0, "minimum salary")
		f.IntVar(&jobFilter.limit, "limit", 0, "maximum results")
	}
	jobCmd.AddCommand(jobPostCmd, jobEditCmd, jobRemoveCmd, jobShowCmd, jobListCmd, jobWatchCmd)
}
