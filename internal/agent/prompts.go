package agent

// Prompt templates. The placeholders are filled with fmt.Sprintf. The
// wording is configuration, not logic: the parsing side never assumes
// the model honored the requested format.

const taskAnalysisPrompt = `As a technical team lead, analyze the following task and break it down
into sub-tasks:

TASK: %s

1. Analyze the main requirements.
2. Identify the key components needed.
3. Split the work between the frontend and backend developers.
4. Define the interfaces between components.
5. Establish success criteria for each sub-task.`

const taskExtractionPrompt = `From your previous analysis of the task "%s", extract:

1. A list of specific tasks for the frontend developer (3-5 tasks).
2. A list of specific tasks for the backend developer (3-5 tasks).
3. The critical integration points between frontend and backend.

Format your answer as strict JSON with the keys 'frontend_tasks',
'backend_tasks' and 'integration_points'.
If the task is too simple to decompose, return empty lists.`

const assignmentPrompt = `Task assignment for %s:

PROJECT CONTEXT: %s

YOUR TASK: %s

EXPECTATIONS:
- Deliver a working solution for the assigned task
- Document your approach and technical decisions
- Identify potential future improvements

CONSTRAINTS:
%s

INTERFACES WITH OTHER COMPONENTS:
%s

SUCCESS CRITERIA:
%s`

// Fixed assignment boilerplate.
const (
	assignmentConstraints     = "Use standard technologies and stay consistent with the other components."
	assignmentSuccessCriteria = "A working, well-documented and maintainable solution."
)

const reviewPrompt = `Review of the work submitted by %s:

ORIGINAL TASK: %s

SUBMITTED SOLUTION:
%s

Evaluate this solution against the following criteria:
1. Functionality - does the solution meet the requirements?
2. Quality - is the solution well designed and maintainable?
3. Integration - how does it fit with the other components?
4. Improvements - what would you suggest?`

const integrationPrompt = `Integration of the components for the task: %s

FRONTEND COMPONENT:
%s

BACKEND COMPONENT:
%s

Integrate the components, considering:
1. Consistency of the interfaces
2. Compatibility of the exchanged data
3. Communication flows between components
4. Potential integration issues and their solutions`

const directSolutionPrompt = `Provide a complete solution for the following task:

%s

Cover both the frontend and backend aspects of the solution. Include
example code and detailed explanations.`

// Placeholders substituted when exactly one specialization produced
// nothing before integration.
const (
	noFrontendSolution = "No frontend solution available."
	noBackendSolution  = "No backend solution available."
)

const classifyFrontendPrompt = `Analyze this task and decide whether it is primarily:
1. User interface design (UI/UX)
2. Implementation of a specific component or feature
3. Both

TASK:
%s

Answer with a single digit: 1, 2 or 3.`

const classifyBackendPrompt = `Analyze this task and decide whether it is primarily:
1. Backend architecture design
2. Implementation of an API or specific components
3. Both

TASK:
%s

Answer with a single digit: 1, 2 or 3.`

const extractRequirementsPrompt = `From the following task, extract the functional and non-functional
requirements:

%s

Format your answer as two clearly separated sections:

FUNCTIONAL REQUIREMENTS:
- (list of requirements)

NON-FUNCTIONAL REQUIREMENTS:
- (list of requirements)`

const extractUIContextPrompt = `From the following task, extract the target users and the required
features:

%s

Format your answer as two clearly separated sections:

TARGET USERS:
(description of the users)

REQUIRED FEATURES:
- (list of features)`

const extractAPIDetailsPrompt = `From the following task, extract the required endpoints and the data
model:

%s

Format your answer as two sections:

ENDPOINTS:
- (list of endpoints)

DATA MODEL:
(description of the model)`

const architectureDesignPrompt = `Design a backend architecture for the following feature: %s

CONTEXT: %s

FUNCTIONAL REQUIREMENTS:
%s

NON-FUNCTIONAL REQUIREMENTS:
%s

Describe the components, the data flows, the storage choices and the
trade-offs of your design.`

const apiImplementationPrompt = `Implement the backend API: %s

REQUIRED ENDPOINTS:
%s

DATA MODEL:
%s

CONSTRAINTS:
%s

Provide the implementation with example code, validation and error
handling.`

const uiDesignPrompt = `Design a user interface for the following feature: %s

CONTEXT: %s

TARGET USERS:
%s

REQUIRED FEATURES:
%s

Describe the layout, the interaction flows and the accessibility
considerations of your design.`

const componentImplementationPrompt = `Implement the frontend component: %s

SPECIFICATIONS:
%s

BACKEND INTEGRATION:
%s

RECOMMENDED TECHNOLOGIES:
%s

Provide the implementation with example code and integration notes.`

const mixedFrontendPrompt = `As the frontend developer, complete the following task in full detail:

%s

Provide a complete solution that includes:
1. The user interface design
2. The technical implementation with the necessary code
3. The rationale for your design and implementation choices
4. The integration instructions for the backend`

const mixedBackendPrompt = `As the backend developer, complete the following task in full detail:

%s

Provide a complete solution that includes:
1. The backend architecture design where needed
2. The technical implementation with the necessary code
3. The rationale for your architecture and implementation choices
4. The integration interfaces for the frontend`
