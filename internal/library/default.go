package library

// defaultLibrary is the embedded 2-D pedagogy catalog. The two dimensions are
// fluency and depth, both in [0,1].
const defaultLibrary = `dims: 2

templates:
  - name: Introduction
    description: "Initial presentation introducing the lesson topic"
    pcond: "(0.0;0.0)"
    effect:
      max: "(0.15;0.05)"
    time:
      default: 10
    max_repetition: 1
    plane: class

  - name: AdvancedOrganiser
    description: "Brief overview to help students organize new information"
    pcond: "(0.0;0.0)"
    effect:
      max: "(0.1;0.1)"
    time:
      default: 5
    max_repetition: 1
    plane: class

  - name: TellTheClass
    description: "Teacher presents information directly to the entire class"
    pcond: "(0.1;0.0)"
    effect:
      min: "(0.15;0.05)"
      max: "(0.3;0.1)"
    time:
      min: 10
      max: 25
      default: 15
    max_repetition: 3
    plane: class

  - name: ExplainClass
    description: "Teacher explains concepts with class-wide discussion"
    pcond: "(0.2;0.1)"
    effect:
      min: "(0.1;0.1)"
      max: "(0.2;0.25)"
    time:
      min: 10
      max: 30
      default: 15
    max_repetition: 2
    plane: class

  - name: PracticeMemory
    description: "Individual exercises focused on memorization and recall"
    pcond: "(0.2;0.2)"
    effect:
      min: "(0.2;0.0)"
      max: "(0.5;0.0)"
    time:
      min: 10
      max: 30
      default: 15
    max_repetition: 2
    plane: individual

  - name: PracticeApplication
    description: "Students apply learned concepts to solve practical problems"
    pcond: "(0.3;0.2)"
    effect:
      min: "(0.1;0.1)"
      max: "(0.25;0.2)"
    time:
      min: 10
      max: 30
      default: 20
    max_repetition: 2
    plane: individual

  - name: DesirableDifficultyProblem
    description: "Students work on challenging problems that enhance long-term retention"
    pcond: "(0.3;0.3)"
    effect:
      min: "(0.1;0.15)"
      max: "(0.15;0.3)"
    time:
      min: 15
      max: 35
      default: 20
    max_repetition: 2
    plane: individual

  - name: PracticeAnalyse
    description: "Team-based analysis activities to break down and understand concepts"
    pcond: "(0.4;0.3)"
    effect:
      min: "(0.05;0.15)"
      max: "(0.1;0.3)"
    time:
      min: 15
      max: 35
      default: 20
    max_repetition: 2
    plane: team

  - name: PracticeEvaluate
    description: "Collaborative evaluation of ideas, solutions, or arguments"
    pcond: "(0.5;0.4)"
    effect:
      min: "(0.05;0.15)"
      max: "(0.1;0.25)"
    time:
      min: 10
      max: 30
      default: 15
    max_repetition: 2
    plane: team

  - name: PracticeCreate
    description: "Students create original work demonstrating mastery"
    pcond: "(0.6;0.5)"
    effect:
      min: "(0.1;0.15)"
      max: "(0.2;0.35)"
    time:
      min: 20
      max: 45
      default: 30
    max_repetition: 1
    plane: individual
`
