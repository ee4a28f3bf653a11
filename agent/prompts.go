package agent

import "fmt"

// Prompt templates for the supervisor and the three worker roles.
// The supervisor sees the run history and replies with a bare role name
// or FINISH; workers get the user task and the shared tool set.

const supervisorTemplate = `You are a supervisor managing a team of agents: researcher, developer, tester.
Given the following user query and current state, decide which agent to route to next or FINISH if complete.
Agents:
- researcher: For gathering information or research.
- developer: For writing or developing code.
- tester: For testing code or validating results.

Current state: %s
User query: %s

Respond with the next agent name or "FINISH".`

const researcherTemplate = `You are a researcher agent. Use tools to gather information.
Task: %s`

const developerTemplate = `You are a developer agent. Use tools to write and execute code.
Task: %s`

const testerTemplate = `You are a tester agent. Use tools to test and validate.
Task: %s`

// SupervisorPrompt renders the routing prompt from the run history and
// the original query.
func SupervisorPrompt(state, query string) string {
	return fmt.Sprintf(supervisorTemplate, state, query)
}

// ResearcherPrompt renders the researcher task prompt.
func ResearcherPrompt(task string) string {
	return fmt.Sprintf(researcherTemplate, task)
}

// DeveloperPrompt renders the developer task prompt.
func DeveloperPrompt(task string) string {
	return fmt.Sprintf(developerTemplate, task)
}

// TesterPrompt renders the tester task prompt.
func TesterPrompt(task string) string {
	return fmt.Sprintf(testerTemplate, task)
}
